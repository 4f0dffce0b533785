package explorer

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/trawl"
)

var linkSelectors = []struct {
	selector string
	attr     string
}{
	{"a[href]", "href"},
	{"area[href]", "href"},
	{"link[href]", "href"},
	{"frame[src]", "src"},
	{"iframe[src]", "src"},
	{"script[src]", "src"},
	{"embed[src]", "src"},
}

var refreshRe = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'";]+)`)

// pixel uploaded for file inputs
var uploadContent = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")

// Extract the candidate requests a fetched resource points to, in document
// order. Candidates are not scope checked.
func Extract(req *trawl.Request, resp *trawl.Response, forms *trawl.FormData) []*trawl.Request {
	candidates := make([]*trawl.Request, 0)
	base := req.Parsed()
	if forms == nil {
		forms = &trawl.DefaultFormValues
	}

	add := func(c *trawl.Request) {
		c.Referer = req.URL
		c.Depth = req.Depth + 1
		candidates = append(candidates, c)
	}

	if resp.IsRedirect() {
		if c := resolveGet(base, resp.Header("Location")); c != nil {
			add(c)
		}
	}

	if !resp.IsHTML() || len(resp.Body) == 0 {
		return candidates
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		log.Debug().Err(err).Str("url", req.URL).Msg("failed to parse document")
		return candidates
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = u
		}
	}

	for _, ls := range linkSelectors {
		doc.Find(ls.selector).Each(func(i int, s *goquery.Selection) {
			val, _ := s.Attr(ls.attr)
			if c := resolveGet(base, val); c != nil {
				add(c)
			}
		})
	}

	doc.Find("meta[http-equiv]").Each(func(i int, s *goquery.Selection) {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(equiv, "refresh") {
			return
		}
		content, _ := s.Attr("content")
		if m := refreshRe.FindStringSubmatch(content); m != nil {
			if c := resolveGet(base, m[1]); c != nil {
				add(c)
			}
		}
	})

	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		if c := extractForm(base, s, forms); c != nil {
			add(c)
		}
	})
	return candidates
}

func resolveGet(base *url.URL, ref string) *trawl.Request {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return nil
	}
	u, err := base.Parse(ref)
	if err != nil {
		return nil
	}
	c, err := trawl.NewGetRequest(u.String())
	if err != nil {
		return nil
	}
	return c
}

func extractForm(base *url.URL, form *goquery.Selection, values *trawl.FormData) *trawl.Request {
	action, _ := form.Attr("action")
	target := base
	if strings.TrimSpace(action) != "" {
		u, err := base.Parse(strings.TrimSpace(action))
		if err != nil {
			return nil
		}
		target = u
	}

	method := strings.ToUpper(strings.TrimSpace(form.AttrOr("method", "GET")))
	if method != "POST" {
		method = "GET"
	}
	enctype := strings.ToLower(strings.TrimSpace(form.AttrOr("enctype", "application/x-www-form-urlencoded")))

	params := make([]trawl.Param, 0)
	files := make([]trawl.FileParam, 0)
	submitted := false

	form.Find("input[name], select[name], textarea[name], button[name]").Each(func(i int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		if name == "" {
			return
		}

		switch goquery.NodeName(s) {
		case "select":
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			params = append(params, trawl.Param{Name: name, Value: opt.AttrOr("value", strings.TrimSpace(opt.Text()))})
			return
		case "textarea":
			val := s.Text()
			if val == "" {
				val = values.Value("textarea", name)
			}
			params = append(params, trawl.Param{Name: name, Value: val})
			return
		case "button":
			if submitted {
				return
			}
			submitted = true
			params = append(params, trawl.Param{Name: name, Value: s.AttrOr("value", "")})
			return
		}

		inputType := strings.ToLower(s.AttrOr("type", "text"))
		val, hasValue := s.Attr("value")
		switch inputType {
		case "file":
			files = append(files, trawl.FileParam{Name: name, Filename: "pix.gif", Content: uploadContent, MimeType: "image/gif"})
		case "submit", "image":
			if submitted {
				return
			}
			submitted = true
			params = append(params, trawl.Param{Name: name, Value: val})
		case "reset":
		case "checkbox", "radio":
			if !hasValue {
				val = "on"
			}
			for _, p := range params {
				if p.Name == name {
					return
				}
			}
			params = append(params, trawl.Param{Name: name, Value: val})
		case "hidden":
			params = append(params, trawl.Param{Name: name, Value: val})
		default:
			if val == "" {
				val = values.Value(inputType, name)
			}
			params = append(params, trawl.Param{Name: name, Value: val})
		}
	})

	if method == "GET" {
		c, err := trawl.NewGetRequest(target.String())
		if err != nil {
			return nil
		}
		if len(params) == 0 {
			return c
		}
		return c.WithGetParams(params)
	}

	if len(files) > 0 {
		enctype = "multipart/form-data"
	}
	c, err := trawl.NewRequest("POST", target.String(), params, files)
	if err != nil {
		return nil
	}
	c.Enctype = enctype
	return c
}
