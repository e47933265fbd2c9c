package domain

import (
	"strings"
	"unicode"

	lobbyerrors "github.com/louisbranch/lobby/internal/platform/errors"
	"golang.org/x/text/unicode/norm"
)

// MaxNameRunes caps a display name after normalization.
const MaxNameRunes = 32

// NormalizeName returns the canonical display form of name: NFC composed,
// control characters removed, inner whitespace collapsed and capped at
// MaxNameRunes runes.
func NormalizeName(name string) (string, error) {
	composed := norm.NFC.String(name)
	var b strings.Builder
	runes := 0
	pendingSpace := false
	for _, r := range composed {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		if runes >= MaxNameRunes {
			break
		}
		if pendingSpace {
			if runes+1 >= MaxNameRunes {
				break
			}
			b.WriteByte(' ')
			runes++
			pendingSpace = false
		}
		b.WriteRune(r)
		runes++
	}
	if b.Len() == 0 {
		return "", lobbyerrors.New(lobbyerrors.CodeMalformed, "name is required")
	}
	return b.String(), nil
}

// Rename overwrites a player's display name. It reports false when the
// session or player is absent.
func (l SessionList) Rename(sessionID, playerID uint32, name string) bool {
	si := l.Index(sessionID)
	if si < 0 {
		return false
	}
	pi := l[si].PlayerIndex(playerID)
	if pi < 0 {
		return false
	}
	l[si].Players[pi].Name = name
	return true
}

// SetPop overwrites a session's region. It reports false when the session is
// absent.
func (l SessionList) SetPop(sessionID uint32, pop string) bool {
	si := l.Index(sessionID)
	if si < 0 {
		return false
	}
	l[si].Pop = pop
	return true
}
