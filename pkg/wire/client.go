package wire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	giturls "github.com/chainguard-dev/git-urls"

	"github.com/grithq/grit/pkg/object"
)

// fetchCaps is what the client asks for on the first want line.
const fetchCaps = "side-band-64k ofs-delta"

// pushCaps is what the client attaches to the first receive-pack command.
const pushCaps = "report-status ofs-delta"

// ClientOptions configures the transport client. Zero values receive
// defaults.
type ClientOptions struct {
	Timeout     time.Duration // default 60s
	MaxAttempts int           // default 3
}

// Client speaks the smart-HTTP protocol against one remote repository.
type Client struct {
	base        string
	httpClient  *http.Client
	maxAttempts int
}

// NewClient parses remoteURL into an HTTP endpoint. SSH and scp-style
// remotes are rejected; only http and https transports are supported.
func NewClient(remoteURL string, opts ClientOptions) (*Client, error) {
	u, err := giturls.Parse(strings.TrimSpace(remoteURL))
	if err != nil {
		return nil, fmt.Errorf("parse remote URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported remote scheme %q (http or https required)", u.Scheme)
	}
	if u.Host == "" || strings.Trim(u.Path, "/") == "" {
		return nil, fmt.Errorf("remote URL %q must include host and repository path", remoteURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	u.RawQuery = ""
	u.Fragment = ""
	return &Client{
		base:        strings.TrimRight(u.String(), "/"),
		httpClient:  &http.Client{Timeout: opts.Timeout},
		maxAttempts: opts.MaxAttempts,
	}, nil
}

// Base returns the normalized endpoint URL.
func (c *Client) Base() string {
	return c.base
}

// Head fetches the remote HEAD file: either "ref: <name>" or a bare hash.
func (c *Client) Head(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/HEAD", nil)
	if err != nil {
		return "", err
	}
	resp, err := retryDo(c.httpClient, req, c.maxAttempts, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", httpError(resp, body)
	}
	return strings.TrimSpace(string(body)), nil
}

// DiscoverRefs performs the info/refs exchange for the given service.
func (c *Client) DiscoverRefs(ctx context.Context, service string) (*Advert, error) {
	url := fmt.Sprintf("%s/info/refs?service=%s", c.base, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := retryDo(c.httpClient, req, c.maxAttempts, true)
	if err != nil {
		return nil, fmt.Errorf("discover refs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, httpError(resp, body)
	}
	wantCT := fmt.Sprintf("application/x-%s-advertisement", service)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, wantCT) {
		return nil, fmt.Errorf("%w: advertisement content type %q", ErrProtocol, ct)
	}

	advert, err := ParseAdvertisement(resp.Body, service)
	if err != nil {
		return nil, fmt.Errorf("discover refs: %w", err)
	}
	return advert, nil
}

// FetchPack negotiates a pack download: want and have lines, a done
// terminator, then the NAK and side-band wrapped pack bytes. Progress
// messages go to onProgress when set.
func (c *Client) FetchPack(ctx context.Context, wants, haves []object.Hash, onProgress func(string)) ([]byte, error) {
	if len(wants) == 0 {
		return nil, fmt.Errorf("fetch-pack: at least one want is required")
	}

	var body bytes.Buffer
	for i, w := range wants {
		line := fmt.Sprintf("want %s", w)
		if i == 0 {
			line += " " + fetchCaps
		}
		if err := WritePktString(&body, line+"\n"); err != nil {
			return nil, err
		}
	}
	if err := WriteFlush(&body); err != nil {
		return nil, err
	}
	for _, h := range haves {
		if err := WritePktString(&body, fmt.Sprintf("have %s\n", h)); err != nil {
			return nil, err
		}
	}
	if err := WritePktString(&body, "done\n"); err != nil {
		return nil, err
	}

	resp, err := c.postService(ctx, ServiceUploadPack, body.Bytes(), true)
	if err != nil {
		return nil, fmt.Errorf("fetch-pack: %w", err)
	}
	defer resp.Body.Close()

	pkts := NewPktReader(resp.Body)
	ack, flush, err := pkts.NextString()
	if err != nil {
		return nil, fmt.Errorf("fetch-pack: %w", err)
	}
	if flush || ack != "NAK" {
		return nil, fmt.Errorf("%w: expected NAK, got %q", ErrProtocol, ack)
	}

	pack, err := io.ReadAll(NewSidebandReader(resp.Body, onProgress))
	if err != nil {
		return nil, fmt.Errorf("fetch-pack: read pack: %w", err)
	}
	return pack, nil
}

// SendPack uploads ref updates and their pack, then checks the
// report-status response. The POST is replayed only after connection
// errors, never after a status the server may have acted on.
func (c *Client) SendPack(ctx context.Context, commands []Command, pack []byte) error {
	if len(commands) == 0 {
		return fmt.Errorf("send-pack: at least one command is required")
	}

	var body bytes.Buffer
	if err := WriteCommands(&body, commands, pushCaps); err != nil {
		return err
	}
	body.Write(pack)

	resp, err := c.postService(ctx, ServiceReceivePack, body.Bytes(), false)
	if err != nil {
		return fmt.Errorf("send-pack: %w", err)
	}
	defer resp.Body.Close()

	return parseReportStatus(resp.Body, commands)
}

func (c *Client) postService(ctx context.Context, service string, body []byte, retryStatus bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+service, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", fmt.Sprintf("application/x-%s-request", service))

	resp, err := retryDo(c.httpClient, req, c.maxAttempts, retryStatus)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, httpError(resp, respBody)
	}
	return resp, nil
}

// parseReportStatus validates the receive-pack response: an unpack status
// line, then one ok/ng line per command.
func parseReportStatus(r io.Reader, commands []Command) error {
	pkts := NewPktReader(r)

	status, flush, err := pkts.NextString()
	if err != nil {
		return fmt.Errorf("send-pack: read status: %w", err)
	}
	if flush {
		return fmt.Errorf("%w: empty report-status", ErrProtocol)
	}
	if status != "unpack ok" {
		return fmt.Errorf("%w: %s", ErrProtocol, status)
	}

	results := make(map[string]string, len(commands))
	for {
		line, flush, err := pkts.NextString()
		if err == io.EOF || flush {
			break
		}
		if err != nil {
			return fmt.Errorf("send-pack: read status: %w", err)
		}
		switch {
		case strings.HasPrefix(line, "ok "):
			results[strings.TrimPrefix(line, "ok ")] = ""
		case strings.HasPrefix(line, "ng "):
			rest := strings.TrimPrefix(line, "ng ")
			name, reason, _ := strings.Cut(rest, " ")
			if reason == "" {
				reason = "rejected"
			}
			results[name] = reason
		default:
			return fmt.Errorf("%w: malformed status line %q", ErrProtocol, line)
		}
	}

	for _, cmd := range commands {
		reason, ok := results[cmd.Name]
		if !ok {
			return fmt.Errorf("%w: no status for ref %s", ErrProtocol, cmd.Name)
		}
		if reason != "" {
			return fmt.Errorf("push %s rejected: %s", cmd.Name, reason)
		}
	}
	return nil
}

func httpError(resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("remote returned %d: %s", resp.StatusCode, msg)
}
