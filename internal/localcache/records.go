package localcache

import (
	"encoding/json"
	"errors"

	"fragmentone/internal/clock"
	"fragmentone/pkg/errs"
)

// Keys are the whole persisted layout used by the exchange.
const (
	PeerFragmentKey  = "receivedFragment"
	CleanupMarkerKey = "lastCleanupDate"
)

var errEmptyText = errors.New("empty text")

// CachedPeerFragment is the peer fragment shown to this visitor on Date.
type CachedPeerFragment struct {
	Text string    `json:"text"`
	Date clock.Day `json:"date"`
}

// LoadPeer returns nil when nothing is cached. A value that does not parse
// as {text, date} yields a *errs.CacheCorruptError.
func LoadPeer(s Store) (*CachedPeerFragment, error) {
	raw, ok, err := s.Get(PeerFragmentKey)
	if err != nil || !ok {
		return nil, err
	}

	var cached CachedPeerFragment
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, &errs.CacheCorruptError{Key: PeerFragmentKey, Value: raw, Err: err}
	}
	if _, err := clock.ParseDay(string(cached.Date)); err != nil {
		return nil, &errs.CacheCorruptError{Key: PeerFragmentKey, Value: raw, Err: err}
	}
	if cached.Text == "" {
		return nil, &errs.CacheCorruptError{Key: PeerFragmentKey, Value: raw, Err: errEmptyText}
	}
	return &cached, nil
}

func SavePeer(s Store, cached CachedPeerFragment) error {
	raw, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return s.Set(PeerFragmentKey, string(raw))
}

func ClearPeer(s Store) error {
	return s.Remove(PeerFragmentKey)
}

// LoadCleanupMarker returns ok=false when no sweep has been recorded.
func LoadCleanupMarker(s Store) (clock.Day, bool, error) {
	raw, ok, err := s.Get(CleanupMarkerKey)
	if err != nil || !ok {
		return "", false, err
	}
	day, err := clock.ParseDay(raw)
	if err != nil {
		return "", false, &errs.CacheCorruptError{Key: CleanupMarkerKey, Value: raw, Err: err}
	}
	return day, true, nil
}

func SaveCleanupMarker(s Store, day clock.Day) error {
	return s.Set(CleanupMarkerKey, day.String())
}
