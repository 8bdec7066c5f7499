package auth

import (
	"context"
	"errors"
	"strconv"
)

// clearCredentials removes both the session and the access token. Both
// deletes are attempted even if the first one fails.
func clearCredentials(ctx context.Context, tokens TokenStore, cfg Config) error {
	return errors.Join(
		tokens.Delete(ctx, cfg.GetSessionTokenKey()),
		tokens.Delete(ctx, cfg.GetAccessTokenKey()),
	)
}

func persistCredentials(ctx context.Context, tokens TokenStore, cfg Config, sessionToken, accessToken string) error {
	if sessionToken != "" {
		if err := tokens.Set(ctx, cfg.GetSessionTokenKey(), sessionToken); err != nil {
			return err
		}
	}
	if accessToken != "" {
		if err := tokens.Set(ctx, cfg.GetAccessTokenKey(), accessToken); err != nil {
			return err
		}
	}
	return nil
}

// savedCredentials is the token pair as it was before a login replaced it
type savedCredentials struct {
	values map[string]string
}

func snapshotCredentials(ctx context.Context, tokens TokenStore, cfg Config) (*savedCredentials, error) {
	saved := &savedCredentials{values: map[string]string{}}
	for _, key := range []string{cfg.GetSessionTokenKey(), cfg.GetAccessTokenKey()} {
		v, ok, err := tokens.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			saved.values[key] = v
		}
	}
	return saved, nil
}

// restore writes the saved pair back, deleting keys that were absent
func (s *savedCredentials) restore(ctx context.Context, tokens TokenStore, cfg Config) error {
	var errs []error
	for _, key := range []string{cfg.GetSessionTokenKey(), cfg.GetAccessTokenKey()} {
		if v, ok := s.values[key]; ok {
			errs = append(errs, tokens.Set(ctx, key, v))
			continue
		}
		errs = append(errs, tokens.Delete(ctx, key))
	}
	return errors.Join(errs...)
}

// replaceCredentials swaps the stored pair for the one a login returned.
// Keys the login did not supply are removed, never carried over.
func replaceCredentials(ctx context.Context, tokens TokenStore, cfg Config, sessionToken, accessToken string) error {
	if err := clearCredentials(ctx, tokens, cfg); err != nil {
		return err
	}
	return persistCredentials(ctx, tokens, cfg, sessionToken, accessToken)
}

// TokenCredentials exposes the stored access token to backend clients
type TokenCredentials struct {
	Tokens TokenStore
	Config Config
}

// AccessToken returns the stored access token, if any
func (c TokenCredentials) AccessToken(ctx context.Context) (string, error) {
	if c.Tokens == nil {
		return "", nil
	}
	token, _, err := c.Tokens.Get(ctx, normalizeConfig(c.Config).GetAccessTokenKey())
	return token, err
}

func loadBool(ctx context.Context, tokens TokenStore, key string) (bool, error) {
	raw, ok, err := tokens.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, nil
	}
	return v, nil
}

func storeBool(ctx context.Context, tokens TokenStore, key string, v bool) error {
	return tokens.Set(ctx, key, strconv.FormatBool(v))
}
