package main

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"os"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
}

func siteURL() string {
	url := os.Getenv("SITE_URL")
	if url == "" {
		url = "http://localhost:8080"
	}
	return url
}

// Feed serves an RSS 2.0 feed of all posts, newest first.
func (b *Blog) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := getPosts(b.db)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	siteTitle, err := getSetting(b.db, "title")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	intro, err := getSetting(b.db, "intro")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	base := siteURL()
	feed := rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:       siteTitle,
			Link:        base,
			Description: intro,
		},
	}

	for i := len(posts) - 1; i >= 0; i-- {
		post := posts[i]
		link := fmt.Sprintf("%s/post/%d", base, post.ID)
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title:       post.Title,
			Link:        link,
			GUID:        link,
			Description: post.Text,
		})
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	fmt.Fprint(w, xml.Header)

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(feed); err != nil {
		log.WithField("error", err).Error("Failed to encode feed")
	}
}
