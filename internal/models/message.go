package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageKind distinguishes the two channel families.
type MessageKind uint8

const (
	// KindGroup is a message in a faculty-wide channel.
	KindGroup MessageKind = iota + 1
	// KindPrivate is a message in a two-party channel.
	KindPrivate
)

func (k MessageKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Message is an immutable chat message. Sender carries the display fields as
// they were when the message was sent; later profile edits do not change it.
type Message struct {
	ID         int64
	Kind       MessageKind
	SenderID   uint
	ReceiverID uint
	Sender     SenderProfile
	Body       string
	Timestamp  time.Time
}

type groupMessageJSON struct {
	ID        int64     `json:"id"`
	UserID    uint      `json:"userId"`
	FullName  string    `json:"fullName"`
	Faculty   string    `json:"faculty"`
	Degree    string    `json:"degree"`
	Course    int       `json:"course"`
	Avatar    string    `json:"avatar"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type privateMessageJSON struct {
	ID         int64     `json:"id"`
	SenderID   uint      `json:"senderId"`
	ReceiverID uint      `json:"receiverId"`
	SenderName string    `json:"senderName"`
	Avatar     string    `json:"avatar"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// MarshalJSON renders the group or private wire shape depending on Kind.
func (m Message) MarshalJSON() ([]byte, error) {
	ts := m.Timestamp.UTC()
	if m.Kind == KindPrivate {
		return json.Marshal(privateMessageJSON{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			SenderName: m.Sender.FullName,
			Avatar:     m.Sender.Avatar,
			Message:    m.Body,
			Timestamp:  ts,
		})
	}
	return json.Marshal(groupMessageJSON{
		ID:        m.ID,
		UserID:    m.SenderID,
		FullName:  m.Sender.FullName,
		Faculty:   m.Sender.Faculty,
		Degree:    m.Sender.Degree,
		Course:    m.Sender.Course,
		Avatar:    m.Sender.Avatar,
		Message:   m.Body,
		Timestamp: ts,
	})
}

// PairKey identifies a private channel. Low <= High always holds, so the key
// for (a, b) equals the key for (b, a).
type PairKey struct {
	Low  uint
	High uint
}

// NewPairKey returns the canonical key for the unordered pair {a, b}.
func NewPairKey(a, b uint) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

// Has reports whether userID is one of the two participants.
func (p PairKey) Has(userID uint) bool {
	return p.Low == userID || p.High == userID
}

func (p PairKey) String() string {
	return fmt.Sprintf("%d_%d", p.Low, p.High)
}

// Room is a fan-out scope: a faculty or a private pair. It is comparable and
// used directly as a map key.
type Room struct {
	Kind    MessageKind
	Faculty string
	Pair    PairKey
}

// FacultyRoom returns the group room for faculty.
func FacultyRoom(faculty string) Room {
	return Room{Kind: KindGroup, Faculty: faculty}
}

// PrivateRoom returns the room for the private pair p.
func PrivateRoom(p PairKey) Room {
	return Room{Kind: KindPrivate, Pair: p}
}

func (r Room) String() string {
	if r.Kind == KindPrivate {
		return "private:" + r.Pair.String()
	}
	return "faculty:" + r.Faculty
}
