// Package dropbox is a Dropbox API v2 cloud store.
package dropbox

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/imroc/req/v3"
	"github.com/openmined/cloudsync/internal/version"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIURL     = "https://api.dropboxapi.com/2"
	DefaultContentURL = "https://content.dropboxapi.com/2"
	DefaultTokenURL   = "https://api.dropboxapi.com/oauth2/token"

	headerAPIArg    = "Dropbox-API-Arg"
	headerAPIResult = "Dropbox-API-Result"

	pathListFolder         = "/files/list_folder"
	pathListFolderContinue = "/files/list_folder/continue"
	pathDownload           = "/files/download"
	pathUpload             = "/files/upload"
	pathSessionStart       = "/files/upload_session/start"
	pathSessionAppend      = "/files/upload_session/append_v2"
	pathSessionFinish      = "/files/upload_session/finish"

	// files/upload accepts at most 150 MiB; larger files go through an upload session
	maxSingleUpload = 150 * 1024 * 1024
	sessionChunk    = 64 * 1024 * 1024
)

// Config holds the credentials and endpoints of the Dropbox store.
type Config struct {
	AccessToken  string
	RefreshToken string
	AppKey       string
	AppSecret    string

	APIURL     string
	ContentURL string
	TokenURL   string

	RetryCount int
	Timeout    time.Duration
	DryRun     bool
}

// Client is a thin Dropbox API v2 client over imroc/req.
type Client struct {
	http       *req.Client
	apiURL     string
	contentURL string
}

func NewClient(cfg *Config) (*Client, error) {
	tokens, err := tokenSource(cfg)
	if err != nil {
		return nil, err
	}

	retries := cfg.RetryCount
	if retries < 0 {
		retries = 0
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	httpClient := req.C().
		SetTimeout(timeout).
		SetCommonRetryCount(retries).
		SetCommonRetryBackoffInterval(500*time.Millisecond, 5*time.Second).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			code := resp.GetStatusCode()
			return err != nil || code == 429 || code >= 500
		}).
		SetUserAgent(version.UserAgent()).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal).
		SetCommonErrorResult(&APIError{}).
		OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			token, err := tokens.Token()
			if err != nil {
				return fmt.Errorf("dropbox token: %w", err)
			}
			r.SetBearerAuthToken(token.AccessToken)
			return nil
		})

	return &Client{
		http:       httpClient,
		apiURL:     strings.TrimRight(orDefault(cfg.APIURL, DefaultAPIURL), "/"),
		contentURL: strings.TrimRight(orDefault(cfg.ContentURL, DefaultContentURL), "/"),
	}, nil
}

// tokenSource renews short-lived access tokens when a refresh token is configured.
func tokenSource(cfg *Config) (oauth2.TokenSource, error) {
	if cfg.RefreshToken != "" {
		conf := &oauth2.Config{
			ClientID:     cfg.AppKey,
			ClientSecret: cfg.AppSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  orDefault(cfg.TokenURL, DefaultTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		return conf.TokenSource(context.Background(), &oauth2.Token{
			AccessToken:  cfg.AccessToken,
			RefreshToken: cfg.RefreshToken,
		}), nil
	}
	if cfg.AccessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}), nil
	}
	return nil, ErrNoToken
}

func (c *Client) listFolder(ctx context.Context, path string) ([]*entry, error) {
	var page listFolderResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&listFolderArg{Path: path}).
		SetSuccessResult(&page).
		Post(c.apiURL + pathListFolder)
	if err := handleAPIError(resp, err, "list folder"); err != nil {
		return nil, err
	}

	entries := page.Entries
	for page.HasMore {
		cursor := page.Cursor
		page = listFolderResult{}
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(&listFolderContinueArg{Cursor: cursor}).
			SetSuccessResult(&page).
			Post(c.apiURL + pathListFolderContinue)
		if err := handleAPIError(resp, err, "list folder continue"); err != nil {
			return nil, err
		}
		entries = append(entries, page.Entries...)
	}
	return entries, nil
}

// download returns the content of the file at path, which may be an "id:" reference.
func (c *Client) download(ctx context.Context, path string) ([]byte, *entry, error) {
	arg, err := headerJSON(&downloadArg{Path: path})
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerAPIArg, arg).
		Post(c.contentURL + pathDownload)
	if err := handleAPIError(resp, err, "download"); err != nil {
		return nil, nil, err
	}

	var meta entry
	if result := resp.Header.Get(headerAPIResult); result != "" {
		if err := jsonUnmarshal([]byte(result), &meta); err != nil {
			return nil, nil, fmt.Errorf("decode %s: %w", headerAPIResult, err)
		}
	}
	return resp.Bytes(), &meta, nil
}

func (c *Client) upload(ctx context.Context, content []byte, commit *commitInfo) (*entry, error) {
	if len(content) > maxSingleUpload {
		return c.uploadSession(ctx, content, commit)
	}

	arg, err := headerJSON(commit)
	if err != nil {
		return nil, err
	}

	var meta entry
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerAPIArg, arg).
		SetContentType("application/octet-stream").
		SetBody(content).
		SetSuccessResult(&meta).
		Post(c.contentURL + pathUpload)
	if err := handleAPIError(resp, err, "upload"); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) uploadSession(ctx context.Context, content []byte, commit *commitInfo) (*entry, error) {
	first := content[:sessionChunk]

	var started uploadSessionStartResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerAPIArg, `{"close":false}`).
		SetContentType("application/octet-stream").
		SetBody(first).
		SetSuccessResult(&started).
		Post(c.contentURL + pathSessionStart)
	if err := handleAPIError(resp, err, "upload session start"); err != nil {
		return nil, err
	}

	offset := int64(len(first))
	for offset < int64(len(content))-sessionChunk {
		chunk := content[offset : offset+sessionChunk]
		arg, err := headerJSON(&uploadSessionAppendArg{
			Cursor: uploadSessionCursor{SessionID: started.SessionID, Offset: offset},
		})
		if err != nil {
			return nil, err
		}
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader(headerAPIArg, arg).
			SetContentType("application/octet-stream").
			SetBody(chunk).
			Post(c.contentURL + pathSessionAppend)
		if err := handleAPIError(resp, err, "upload session append"); err != nil {
			return nil, err
		}
		offset += int64(len(chunk))
	}

	finish := uploadSessionFinishArg{
		Cursor:      uploadSessionCursor{SessionID: started.SessionID, Offset: offset},
		Commit:      *commit,
		ContentHash: commit.ContentHash,
	}
	finish.Commit.ContentHash = ""
	arg, err := headerJSON(&finish)
	if err != nil {
		return nil, err
	}

	var meta entry
	resp, err = c.http.R().
		SetContext(ctx).
		SetHeader(headerAPIArg, arg).
		SetContentType("application/octet-stream").
		SetBody(content[offset:]).
		SetSuccessResult(&meta).
		Post(c.contentURL + pathSessionFinish)
	if err := handleAPIError(resp, err, "upload session finish"); err != nil {
		return nil, err
	}
	return &meta, nil
}

// headerJSON encodes v for the Dropbox-API-Arg header, which only carries ASCII.
// Everything else is escaped as \uXXXX.
func headerJSON(v any) (string, error) {
	raw, err := jsonMarshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", headerAPIArg, err)
	}

	var b strings.Builder
	b.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		raw = raw[size:]
		switch {
		case r < utf8.RuneSelf:
			b.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(&b, `\u%04x\u%04x`, 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String(), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
