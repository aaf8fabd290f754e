package domain

import "time"

// Article is a news article as returned by the news API.
type Article struct {
	Source      ArticleSource `json:"source" yaml:"source"`
	Author      string        `json:"author" yaml:"author,omitempty"`
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description" yaml:"description,omitempty"`
	URL         string        `json:"url" yaml:"url"`
	URLToImage  string        `json:"urlToImage" yaml:"url_to_image,omitempty"`
	PublishedAt time.Time     `json:"publishedAt" yaml:"published_at"`
	Content     string        `json:"content" yaml:"content,omitempty"`
}

// ArticleSource names the publisher.
type ArticleSource struct {
	ID   string `json:"id" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name"`
}
