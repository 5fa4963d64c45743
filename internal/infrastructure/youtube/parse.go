package youtube

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoInitialData is returned when a results page carries no recognisable search data.
var ErrNoInitialData = errors.New("ytInitialData not found")

const initialDataMarker = "ytInitialData"

// maxFallbackResults bounds the regex fallback, which cannot tell ads from results.
const maxFallbackResults = 20

// Video is one entry of a results page.
type Video struct {
	ID          string
	Title       string
	Channel     string
	Views       int64
	Duration    int
	Description string
}

type textRuns struct {
	SimpleText string `json:"simpleText"`
	Runs       []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (t textRuns) first() string {
	if len(t.Runs) > 0 {
		return t.Runs[0].Text
	}
	return t.SimpleText
}

func (t textRuns) joined() string {
	if len(t.Runs) == 0 {
		return t.SimpleText
	}
	var b strings.Builder
	for _, r := range t.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

type videoRenderer struct {
	VideoID            string   `json:"videoId"`
	Title              textRuns `json:"title"`
	OwnerText          textRuns `json:"ownerText"`
	ViewCountText      textRuns `json:"viewCountText"`
	LengthText         textRuns `json:"lengthText"`
	DescriptionSnippet textRuns `json:"descriptionSnippet"`
}

type initialData struct {
	Contents struct {
		TwoColumnSearchResultsRenderer struct {
			PrimaryContents struct {
				SectionListRenderer struct {
					Contents []struct {
						ItemSectionRenderer struct {
							Contents []struct {
								VideoRenderer *videoRenderer `json:"videoRenderer"`
							} `json:"contents"`
						} `json:"itemSectionRenderer"`
					} `json:"contents"`
				} `json:"sectionListRenderer"`
			} `json:"primaryContents"`
		} `json:"twoColumnSearchResultsRenderer"`
	} `json:"contents"`
}

// ParseResults extracts videos from a results page. The embedded ytInitialData script is
// decoded when present; otherwise a pattern scan over the raw page is used.
func ParseResults(html string) ([]Video, error) {
	videos, err := parseInitialData(html)
	if err == nil && len(videos) > 0 {
		return videos, nil
	}
	if fallback := parseFallback(html); len(fallback) > 0 {
		return fallback, nil
	}
	if err == nil {
		err = ErrNoInitialData
	}
	return nil, err
}

func parseInitialData(html string) ([]Video, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, initialDataMarker) {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return nil, ErrNoInitialData
	}

	start := strings.Index(script, initialDataMarker)
	brace := strings.Index(script[start:], "{")
	if brace < 0 {
		return nil, ErrNoInitialData
	}

	var data initialData
	if err := json.NewDecoder(strings.NewReader(script[start+brace:])).Decode(&data); err != nil {
		return nil, errors.Join(ErrNoInitialData, err)
	}

	var videos []Video
	sections := data.Contents.TwoColumnSearchResultsRenderer.PrimaryContents.SectionListRenderer.Contents
	for _, section := range sections {
		for _, item := range section.ItemSectionRenderer.Contents {
			r := item.VideoRenderer
			if r == nil || r.VideoID == "" || r.Title.first() == "" {
				continue
			}
			videos = append(videos, Video{
				ID:          r.VideoID,
				Title:       r.Title.first(),
				Channel:     r.OwnerText.first(),
				Views:       ParseViews(r.ViewCountText.first()),
				Duration:    ParseDuration(r.LengthText.first()),
				Description: r.DescriptionSnippet.joined(),
			})
		}
	}
	return videos, nil
}

var fallbackPattern = regexp.MustCompile(`"videoId":"([^"]+)".*?"title":\{"runs":\[\{"text":"([^"]+)"\}.*?"ownerText":\{"runs":\[\{"text":"([^"]+)"\}.*?"viewCountText":\{"simpleText":"([^"]+)"\}.*?"lengthText":\{.*?"simpleText":"([^"]+)"`)

var jsonEscapes = strings.NewReplacer(`\u0026`, "&", `\"`, `"`)

func parseFallback(html string) []Video {
	var videos []Video
	for _, m := range fallbackPattern.FindAllStringSubmatch(html, maxFallbackResults) {
		videos = append(videos, Video{
			ID:       m[1],
			Title:    jsonEscapes.Replace(m[2]),
			Channel:  jsonEscapes.Replace(m[3]),
			Views:    ParseViews(m[4]),
			Duration: ParseDuration(m[5]),
		})
	}
	return videos
}

var viewsPattern = regexp.MustCompile(`(?i)([\d.,]+)\s*([kmb])?`)

// ParseViews turns "1.2M views" or "12,345 views" into a count. Unparseable text is zero.
func ParseViews(text string) int64 {
	m := viewsPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[2]) {
	case "k":
		value *= 1e3
	case "m":
		value *= 1e6
	case "b":
		value *= 1e9
	}
	return int64(math.Round(value))
}

// ParseDuration turns "H:MM:SS" or "M:SS" into seconds. Unknown or malformed text is zero.
func ParseDuration(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	total := 0
	for _, part := range strings.Split(text, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}
