package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/session"
)

// Issuer mints, resolves, revokes and rotates opaque tokens.
//
// Access tokens live under TokenConfig.AccessPrefix for AccessTTL; refresh
// tokens live under TokenConfig.RefreshPrefix for RefreshTTL. Validity is
// store membership: a token is valid exactly while its key exists.
type Issuer struct {
	store   *session.Store
	config  TokenConfig
	metrics *Metrics
}

// NewIssuer validates cfg and returns an [Issuer] over store.
func NewIssuer(store *session.Store, cfg TokenConfig) (*Issuer, error) {
	if store == nil {
		return nil, errors.New("session store required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshMultiplier < 1 {
		return nil, errors.New("invalid token lifetimes")
	}
	if cfg.AccessPrefix == "" || cfg.RefreshPrefix == "" || cfg.AccessPrefix == cfg.RefreshPrefix {
		return nil, errors.New("access and refresh prefixes must be distinct and non-empty")
	}
	if cfg.DefaultRole == "" {
		return nil, errors.New("default role required")
	}
	return &Issuer{store: store, config: cfg}, nil
}

// AccessTTL returns the access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.config.AccessTTL }

// RefreshTTL returns the refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.config.RefreshTTL() }

func (i *Issuer) accessKey(token string) string  { return i.config.AccessPrefix + token }
func (i *Issuer) refreshKey(token string) string { return i.config.RefreshPrefix + token }

func (i *Issuer) newEntry(prefix string, record session.Record, ttl time.Duration) (string, session.Entry, error) {
	token, err := internal.NewOpaqueToken()
	if err != nil {
		return "", session.Entry{}, err
	}
	value, err := session.Encode(record)
	if err != nil {
		return "", session.Entry{}, err
	}
	return token, session.Entry{Key: prefix + token, Value: value, TTL: ttl}, nil
}

// IssueAccess stores id under a fresh access token and returns the token.
func (i *Issuer) IssueAccess(ctx context.Context, id Identity) (string, error) {
	token, entry, err := i.newEntry(i.config.AccessPrefix, id.record(), i.config.AccessTTL)
	if err != nil {
		return "", err
	}
	if err := i.store.Set(ctx, entry.Key, entry.Value, entry.TTL); err != nil {
		return "", storeError(err)
	}
	i.metrics.Inc(MetricAccessIssued)
	return token, nil
}

// IssueRefresh stores a refresh record for the subject with the default role.
func (i *Issuer) IssueRefresh(ctx context.Context, subjectID int64, subjectName string) (string, error) {
	return i.issueRefreshRecord(ctx, session.Record{
		SubjectID:   subjectID,
		SubjectName: subjectName,
		Role:        i.config.DefaultRole,
	})
}

func (i *Issuer) issueRefreshRecord(ctx context.Context, record session.Record) (string, error) {
	token, entry, err := i.newEntry(i.config.RefreshPrefix, record, i.config.RefreshTTL())
	if err != nil {
		return "", err
	}
	if err := i.store.Set(ctx, entry.Key, entry.Value, entry.TTL); err != nil {
		return "", storeError(err)
	}
	i.metrics.Inc(MetricRefreshIssued)
	return token, nil
}

// IssuePair writes an access and a refresh token for id in one transaction.
// Either both tokens are stored or neither is and an error is returned.
// The refresh record carries id's role.
func (i *Issuer) IssuePair(ctx context.Context, id Identity) (TokenPair, error) {
	access, accessEntry, err := i.newEntry(i.config.AccessPrefix, id.record(), i.config.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshEntry, err := i.newEntry(i.config.RefreshPrefix, id.record(), i.config.RefreshTTL())
	if err != nil {
		return TokenPair{}, err
	}

	if err := i.store.SetAll(ctx, accessEntry, refreshEntry); err != nil {
		return TokenPair{}, storeError(err)
	}
	i.metrics.Inc(MetricAccessIssued)
	i.metrics.Inc(MetricRefreshIssued)

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    i.config.AccessTTL,
	}, nil
}

// ResolveAccess returns the identity stored under an access token.
// It returns [ErrTokenNotFound], [ErrStoreUnavailable] or [ErrDecode].
func (i *Issuer) ResolveAccess(ctx context.Context, token string) (Identity, error) {
	return i.resolve(ctx, i.accessKey, token)
}

// ResolveRefresh returns the identity stored under a refresh token without
// consuming it.
func (i *Issuer) ResolveRefresh(ctx context.Context, token string) (Identity, error) {
	return i.resolve(ctx, i.refreshKey, token)
}

func (i *Issuer) resolve(ctx context.Context, key func(string) string, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrTokenNotFound
	}
	data, err := i.store.Get(ctx, key(token))
	if err != nil {
		return Identity{}, storeError(err)
	}
	record, err := session.Decode(data)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return identityFromRecord(record), nil
}

// RevokeAccess deletes an access token. Unknown tokens are not an error.
func (i *Issuer) RevokeAccess(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return storeError(i.store.Delete(ctx, i.accessKey(token)))
}

// RevokeRefresh deletes a refresh token. Unknown tokens are not an error.
func (i *Issuer) RevokeRefresh(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return storeError(i.store.Delete(ctx, i.refreshKey(token)))
}

// ConsumedRefresh is a refresh token that has been atomically removed from
// the store. Until Restore is called the token is invalid.
type ConsumedRefresh struct {
	issuer   *Issuer
	key      string
	value    []byte
	ttl      time.Duration
	identity Identity
}

// Identity returns the identity the consumed token carried.
func (c *ConsumedRefresh) Identity() Identity { return c.identity }

// Record returns the stored record.
func (c *ConsumedRefresh) Record() session.Record { return c.identity.record() }

// Restore writes the consumed token back with the lifetime it had left. A
// token with no lifetime left stays gone.
func (c *ConsumedRefresh) Restore(ctx context.Context) error {
	if c.ttl <= 0 {
		return nil
	}
	return storeError(c.issuer.store.Set(ctx, c.key, c.value, c.ttl))
}

// ConsumeRefresh atomically removes a refresh token and returns what it
// carried. Of concurrent calls with the same token exactly one succeeds; the
// rest, and calls with unknown or corrupt tokens, get [ErrInvalidRefreshToken].
func (i *Issuer) ConsumeRefresh(ctx context.Context, token string) (*ConsumedRefresh, error) {
	if token == "" {
		return nil, ErrInvalidRefreshToken
	}

	key := i.refreshKey(token)
	data, ttl, err := i.store.Take(ctx, key)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, storeError(err)
	}

	record, err := session.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}

	return &ConsumedRefresh{
		issuer:   i,
		key:      key,
		value:    data,
		ttl:      ttl,
		identity: identityFromRecord(record),
	}, nil
}

// RotateRefresh consumes old and issues a new pair for the same subject.
// The role is preserved when TokenConfig.PreserveRoleOnRefresh is set and
// reset to the default role otherwise. If the new pair cannot be stored the
// old token is restored and the store error is returned.
func (i *Issuer) RotateRefresh(ctx context.Context, old string) (TokenPair, Identity, error) {
	consumed, err := i.ConsumeRefresh(ctx, old)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}

	id := consumed.Identity()
	if !i.config.PreserveRoleOnRefresh || id.Role == "" {
		id.Role = i.config.DefaultRole
	}

	pair, err := i.IssuePair(ctx, id)
	if err != nil {
		if rErr := consumed.Restore(ctx); rErr != nil {
			return TokenPair{}, Identity{}, errors.Join(err, rErr)
		}
		return TokenPair{}, Identity{}, err
	}
	return pair, id, nil
}

func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNotFound):
		return ErrTokenNotFound
	case errors.Is(err, session.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	default:
		return err
	}
}
