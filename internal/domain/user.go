// Package domain contains entities without logic, just meta-data
package domain

import (
	"encoding/json"
	"strings"
)

type UserID string

// UserInfo is the open metadata bag a client supplies on join.
// Known Telegram fields are named; anything else lands in Extra and
// round-trips untouched.
type UserInfo struct {
	FirstName string
	LastName  string
	Username  string
	PhotoURL  string
	Extra     map[string]any
}

func (u UserInfo) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

func (u UserInfo) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(u.Extra)+4)
	for k, v := range u.Extra {
		m[k] = v
	}
	if u.FirstName != "" {
		m["first_name"] = u.FirstName
	}
	if u.LastName != "" {
		m["last_name"] = u.LastName
	}
	if u.Username != "" {
		m["username"] = u.Username
	}
	if u.PhotoURL != "" {
		m["photo_url"] = u.PhotoURL
	}
	return json.Marshal(m)
}

func (u *UserInfo) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	take := func(key string) string {
		s, ok := m[key].(string)
		if ok {
			delete(m, key)
		}
		return s
	}
	u.FirstName = take("first_name")
	u.LastName = take("last_name")
	u.Username = take("username")
	u.PhotoURL = take("photo_url")
	u.Extra = nil
	if len(m) > 0 {
		u.Extra = m
	}
	return nil
}

// Participant is a read-only registry view, marshalled as
// {user_id, room_id, ...metadata} for the wire.
type Participant struct {
	UserID UserID
	RoomID RoomID
	Info   UserInfo
}

func (p Participant) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(p.Info)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["user_id"] = p.UserID
	m["room_id"] = p.RoomID
	return json.Marshal(m)
}
