package bluesky

import (
	"encoding/json"
	"time"

	"ForecastPoster/internal/domain"
)

type postRecord struct {
	Type      string      `json:"$type"`
	Text      string      `json:"text"`
	CreatedAt string      `json:"createdAt"`
	Facets    []facet     `json:"facets,omitempty"`
	Embed     *imageEmbed `json:"embed,omitempty"`
}

type facet struct {
	Index    facetIndex     `json:"index"`
	Features []facetFeature `json:"features"`
}

type facetIndex struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type facetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

type imageEmbed struct {
	Type   string       `json:"$type"`
	Images []embedImage `json:"images"`
}

type embedImage struct {
	Alt   string          `json:"alt"`
	Image json.RawMessage `json:"image"`
}

func buildRecord(post domain.Post, createdAt time.Time) postRecord {
	rec := postRecord{
		Type:      postCollection,
		Text:      post.Text,
		CreatedAt: createdAt.Format(time.RFC3339Nano),
	}

	for _, l := range post.Links {
		rec.Facets = append(rec.Facets, facet{
			Index:    facetIndex{ByteStart: l.ByteStart, ByteEnd: l.ByteEnd},
			Features: []facetFeature{{Type: "app.bsky.richtext.facet#link", URI: l.URI}},
		})
	}

	if len(post.Media) > 0 {
		embed := &imageEmbed{Type: "app.bsky.embed.images"}
		for _, m := range post.Media {
			embed.Images = append(embed.Images, embedImage{Alt: m.AltText, Image: json.RawMessage(m.Blob)})
		}
		rec.Embed = embed
	}
	return rec
}
