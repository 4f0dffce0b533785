package trawl

import (
	"regexp"
	"strings"
)

// FormData holds the values used to fill discovered forms
type FormData struct {
	UserName    string `toml:"user_name"`
	Password    string `toml:"password"`
	FirstName   string `toml:"first_name"`
	LastName    string `toml:"last_name"`
	FullName    string `toml:"full_name"`
	Address     string `toml:"address"`
	City        string `toml:"city"`
	ZipCode     string `toml:"zip_code"`
	Country     string `toml:"country"`
	Email       string `toml:"email"`
	PhoneNumber string `toml:"phone_number"`
	URL         string `toml:"url"`
	SearchTerm  string `toml:"search_term"`
	CommentText string `toml:"comment_text"`
	Number      string `toml:"number"`
	Date        string `toml:"date"`
	Default     string `toml:"default"`
}

// DefaultFormValues used when the config doesn't override them
var DefaultFormValues = FormData{
	UserName:    "testuser",
	Password:    "testP@assw0rd1",
	FirstName:   "Test",
	LastName:    "User",
	FullName:    "Test User",
	Address:     "99 W. 3rd Street",
	City:        "Beverly Hills",
	ZipCode:     "90210",
	Country:     "USA",
	Email:       "testuser@test.com",
	PhoneNumber: "5055151",
	URL:         "https://example.com/trawler",
	SearchTerm:  "trawler",
	CommentText: "why yes indeed",
	Number:      "1337",
	Date:        "2019-03-03",
	Default:     "trawler",
}

var (
	userNameRe = regexp.MustCompile("user.?name|user.?id|nickname|login")
	emailRe    = regexp.MustCompile("e.?mail|courriel|correo")
	phoneRe    = regexp.MustCompile("phone|mobile|contact.?number|telefon")
	zipRe      = regexp.MustCompile("zip|postal|post.*code|pcode")
	cityRe     = regexp.MustCompile("city|town|ville|ciudad|stadt")
	countryRe  = regexp.MustCompile("country|countries|pays|pais")
	addressRe  = regexp.MustCompile("address|addr|street|adresse")
	firstRe    = regexp.MustCompile("first.*name|fname|given.*name|prenom")
	lastRe     = regexp.MustCompile("last.*name|lname|surname|family.*name")
	nameRe     = regexp.MustCompile("^name|full.?name|your.?name")
	searchRe   = regexp.MustCompile("^q$|search|query|qry")
	urlRe      = regexp.MustCompile("url|website|homepage|link")
	commentRe  = regexp.MustCompile("comment|message|body|text|content")
)

// Value picks a fill value for an input by its type and name
func (f *FormData) Value(inputType, name string) string {
	switch strings.ToLower(inputType) {
	case "password":
		return f.Password
	case "email":
		return f.Email
	case "tel":
		return f.PhoneNumber
	case "url":
		return f.URL
	case "number", "range":
		return f.Number
	case "date":
		return f.Date
	case "search":
		return f.SearchTerm
	}

	lowered := strings.ToLower(name)
	switch {
	case emailRe.MatchString(lowered):
		return f.Email
	case userNameRe.MatchString(lowered):
		return f.UserName
	case phoneRe.MatchString(lowered):
		return f.PhoneNumber
	case zipRe.MatchString(lowered):
		return f.ZipCode
	case cityRe.MatchString(lowered):
		return f.City
	case countryRe.MatchString(lowered):
		return f.Country
	case addressRe.MatchString(lowered):
		return f.Address
	case firstRe.MatchString(lowered):
		return f.FirstName
	case lastRe.MatchString(lowered):
		return f.LastName
	case nameRe.MatchString(lowered):
		return f.FullName
	case searchRe.MatchString(lowered):
		return f.SearchTerm
	case urlRe.MatchString(lowered):
		return f.URL
	case commentRe.MatchString(lowered):
		return f.CommentText
	}
	return f.Default
}
