package mock

import (
	"fmt"
	"time"

	"gitlab.com/trawler/trawl"
)

// MakeMockResponse with an html body
func MakeMockResponse(url string, status int, body string) *trawl.Response {
	return &trawl.Response{
		URL:    url,
		Status: status,
		Headers: map[string][]string{
			"Content-Type": {"text/html; charset=utf-8"},
		},
		Body:     []byte(body),
		Duration: time.Millisecond,
	}
}

// MakeMockResources for http://example.com/<i>, every third one is a form
func MakeMockResources(count int) []*trawl.Resource {
	resources := make([]*trawl.Resource, 0, count)
	for i := 0; i < count; i++ {
		url := fmt.Sprintf("http://example.com/%d?id=%d", i+1, i)
		var req *trawl.Request
		if i%3 == 2 {
			req, _ = trawl.NewRequest("POST", url, []trawl.Param{{Name: "name", Value: "value"}}, nil)
		} else {
			req, _ = trawl.NewGetRequest(url)
		}
		req.Depth = i % 4
		resources = append(resources, &trawl.Resource{
			Request:  req,
			Response: MakeMockResponse(url, 200, "<html></html>"),
		})
	}
	return resources
}

// ModuleContext for a module under test
func ModuleContext(transport trawl.Transport, sink trawl.FindingSink) *trawl.ModuleContext {
	return &trawl.ModuleContext{
		Transport: transport,
		Findings:  sink,
		Options:   make(map[string]string),
	}
}
