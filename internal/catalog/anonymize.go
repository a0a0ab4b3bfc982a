package catalog

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`(?i)http\S+|www\S+|https\S+`)

// anonymizeLinks rewrites every URL in the text to www.<host>/[LINK] so worker
// screens never show live links to the original posts.
func anonymizeLinks(text string) string {
	for _, rootURL := range urlPattern.FindAllString(text, -1) {
		url := strings.TrimSpace(rootURL)
		url = strings.Replace(url, "http://", "", 1)
		url = strings.Replace(url, "https://", "", 1)
		topURL := url
		if i := strings.Index(url, "/"); i >= 0 {
			topURL = url[:i]
		}
		text = strings.ReplaceAll(text, rootURL, "www."+topURL+"/[LINK]")
	}
	return text
}
