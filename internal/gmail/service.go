package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xaenox/jobmail/pkg/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// ErrNoToken is returned when neither inline tokens nor a token file are available.
var ErrNoToken = errors.New("no gmail oauth token configured")

// NewService builds a read-only Gmail client from previously obtained OAuth
// tokens. Obtaining the tokens is left to an external tool.
func NewService(ctx context.Context, cfg config.GmailConfig, opts ...option.ClientOption) (*gm.Service, error) {
	tok, err := loadToken(cfg)
	if err != nil {
		return nil, err
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gm.GmailReadonlyScope},
	}

	opts = append([]option.ClientOption{option.WithTokenSource(oauthConfig.TokenSource(ctx, tok))}, opts...)
	srv, err := gm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

func loadToken(cfg config.GmailConfig) (*oauth2.Token, error) {
	if strings.TrimSpace(cfg.Tokens) != "" {
		tok, err := decodeToken(strings.NewReader(cfg.Tokens))
		if err != nil {
			return nil, fmt.Errorf("unable to parse gmail tokens: %w", err)
		}
		return tok, nil
	}
	if cfg.TokenFile == "" {
		return nil, ErrNoToken
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoToken, cfg.TokenFile)
		}
		return nil, fmt.Errorf("unable to read token file: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeToken(f)
}

// storedToken also accepts the millisecond expiry_date written by Google's
// Node.js client libraries.
type storedToken struct {
	oauth2.Token
	ExpiryDate int64 `json:"expiry_date,omitempty"`
}

func decodeToken(r io.Reader) (*oauth2.Token, error) {
	var st storedToken
	if err := json.NewDecoder(r).Decode(&st); err != nil {
		return nil, err
	}
	tok := st.Token
	if tok.Expiry.IsZero() && st.ExpiryDate > 0 {
		tok.Expiry = time.UnixMilli(st.ExpiryDate)
	}
	return &tok, nil
}
