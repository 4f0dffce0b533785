package modules

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/trawler/trawl"
)

// FingerprintName of the technology disclosure module
const FingerprintName = "fingerprint"

// SignatureFileName inside the data path
const SignatureFileName = "fingerprint.toml"

// Signature matches a technology. Header is the response header to inspect,
// "Set-Cookie" matches cookie names and "body" the page content. The first
// capture group of Pattern, if any, is the version.
type Signature struct {
	Name    string `toml:"name"`
	Header  string `toml:"header"`
	Pattern string `toml:"pattern"`

	re *regexp.Regexp `toml:"-"`
}

// Signatures as stored on disk
type Signatures struct {
	Signatures []Signature `toml:"signature"`
}

// DefaultSignatures used until an update wrote a signature file
var DefaultSignatures = []*Signature{
	{Name: "Apache", Header: "Server", Pattern: `(?i)apache(?:/([\d.]+))?`},
	{Name: "Nginx", Header: "Server", Pattern: `(?i)nginx(?:/([\d.]+))?`},
	{Name: "Microsoft IIS", Header: "Server", Pattern: `(?i)microsoft-iis(?:/([\d.]+))?`},
	{Name: "LiteSpeed", Header: "Server", Pattern: `(?i)litespeed`},
	{Name: "Caddy", Header: "Server", Pattern: `(?i)caddy`},
	{Name: "PHP", Header: "X-Powered-By", Pattern: `(?i)php(?:/([\d.]+))?`},
	{Name: "ASP.NET", Header: "X-Powered-By", Pattern: `(?i)asp\.net`},
	{Name: "Express", Header: "X-Powered-By", Pattern: `(?i)express`},
	{Name: "ASP.NET", Header: "X-AspNet-Version", Pattern: `([\d.]+)`},
	{Name: "PHP", Header: "Set-Cookie", Pattern: `^PHPSESSID$`},
	{Name: "Java", Header: "Set-Cookie", Pattern: `^JSESSIONID$`},
	{Name: "ASP.NET", Header: "Set-Cookie", Pattern: `^ASP\.NET_SessionId$`},
	{Name: "Laravel", Header: "Set-Cookie", Pattern: `^laravel_session$`},
	{Name: "Django", Header: "Set-Cookie", Pattern: `^csrftoken$`},
	{Name: "WordPress", Header: "body", Pattern: `<meta[^>]+name=["']generator["'][^>]+content=["']WordPress ?([\d.]+)?`},
	{Name: "Drupal", Header: "X-Generator", Pattern: `(?i)drupal(?: ([\d.]+))?`},
	{Name: "Joomla", Header: "body", Pattern: `<meta[^>]+name=["']generator["'][^>]+content=["']Joomla`},
}

func compile(sigs []*Signature) ([]*Signature, error) {
	compiled := make([]*Signature, 0, len(sigs))
	for _, s := range sigs {
		if s.Name == "" || s.Header == "" {
			return nil, errors.New("signature without name or header")
		}
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "signature %s", s.Name)
		}
		compiled = append(compiled, &Signature{Name: s.Name, Header: s.Header, Pattern: s.Pattern, re: re})
	}
	return compiled, nil
}

// LoadSignatures from a signature file
func LoadSignatures(path string) ([]*Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, trawl.ErrNotFound
		}
		return nil, err
	}
	return parseSignatures(data)
}

func parseSignatures(data []byte) ([]*Signature, error) {
	sigs := &Signatures{}
	if err := toml.Unmarshal(data, sigs); err != nil {
		return nil, errors.Wrap(err, "failed to decode signatures")
	}
	if len(sigs.Signatures) == 0 {
		return nil, errors.New("signature file is empty")
	}
	parsed := make([]*Signature, len(sigs.Signatures))
	for i := range sigs.Signatures {
		parsed[i] = &sigs.Signatures[i]
	}
	return compile(parsed)
}

// Fingerprint discloses the technologies a host advertises in its headers
// and pages, once per host and technology
type Fingerprint struct {
	*base
	signatures []*Signature
}

// NewFingerprint module, signatures come from the data path when an update
// has been run
func NewFingerprint(mctx *trawl.ModuleContext) trawl.AttackModule {
	f := &Fingerprint{
		base: newBase(FingerprintName, &trawl.ModuleOpts{
			Priority: 5,
			DoGet:    true,
		}, mctx),
	}
	f.signatures, _ = compile(DefaultSignatures)

	if f.mctx.DataPath != "" {
		path := f.signaturePath()
		sigs, err := LoadSignatures(path)
		switch {
		case err == nil:
			f.signatures = sigs
		case err != trawl.ErrNotFound:
			log.Warn().Err(err).Str("path", path).Msg("invalid signature file, using defaults")
		}
	}
	return f
}

func (f *Fingerprint) signaturePath() string {
	return filepath.Join(f.mctx.DataPath, SignatureFileName)
}

// MustAttack any response
func (f *Fingerprint) MustAttack(req *trawl.Request, resp *trawl.Response) bool {
	return resp != nil
}

// Attack matches the signatures against the stored response
func (f *Fingerprint) Attack(ctx context.Context, req *trawl.Request, resp *trawl.Response) error {
	host := req.Hostname()
	for _, sig := range f.signatures {
		for _, value := range f.values(sig, resp) {
			match := sig.re.FindStringSubmatch(value)
			if match == nil {
				continue
			}
			tech := sig.Name
			if len(match) > 1 && match[1] != "" {
				tech += " " + match[1]
			}
			if !f.once(host, tech) {
				break
			}
			if err := f.report(req, &trawl.Payload{
				Type:      trawl.PayloadAdditional,
				Category:  "Fingerprint web technology",
				Level:     trawl.LevelInfo,
				Parameter: sig.Header,
				Info:      tech + " detected on " + host,
				WSTG:      []string{"WSTG-INFO-02", "WSTG-INFO-08"},
			}); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (f *Fingerprint) values(sig *Signature, resp *trawl.Response) []string {
	switch strings.ToLower(sig.Header) {
	case "body":
		if len(resp.Body) == 0 {
			return nil
		}
		return []string{string(resp.Body)}
	case "set-cookie":
		cookies := setCookies(resp)
		names := make([]string, len(cookies))
		for i, c := range cookies {
			names[i] = c.Name
		}
		return names
	}
	return resp.HeaderValues(sig.Header)
}

// Update refreshes the signature file. With the "update_url" option the
// signatures are downloaded, otherwise the defaults are written out.
func (f *Fingerprint) Update(ctx context.Context) error {
	if f.mctx.DataPath == "" {
		return trawl.NewConfigError("data_path", "", "required to store signatures")
	}

	sigs := DefaultSignatures
	if source := f.mctx.Option("update_url", ""); source != "" {
		req, err := trawl.NewGetRequest(source)
		if err != nil {
			return err
		}
		resp, err := f.send(ctx, req)
		if err != nil {
			return err
		}
		if !resp.IsSuccess() {
			return errors.Errorf("signature update from %s returned status %d", source, resp.Status)
		}
		if sigs, err = parseSignatures(resp.Body); err != nil {
			return err
		}
	}

	file := Signatures{Signatures: make([]Signature, len(sigs))}
	for i, s := range sigs {
		file.Signatures[i] = Signature{Name: s.Name, Header: s.Header, Pattern: s.Pattern}
	}
	data, err := toml.Marshal(file)
	if err != nil {
		return errors.Wrap(err, "failed to encode signatures")
	}
	if err := os.MkdirAll(f.mctx.DataPath, 0755); err != nil {
		return err
	}
	path := f.signaturePath()
	if err := os.WriteFile(path+".tmp", data, 0644); err != nil {
		return err
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		return err
	}
	log.Info().Int("signatures", len(sigs)).Str("path", path).Msg("fingerprint signatures updated")

	if f.signatures, err = compile(sigs); err != nil {
		return err
	}
	return nil
}
