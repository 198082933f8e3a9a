package domain

const (
	MaxNicknameLen    = 36
	MaxDisplayNameLen = 64
)

// User maps an opaque credential to the display name it was issued for.
type User struct {
	Credential  string `json:"credential"`
	DisplayName string `json:"display_name"`
}

// ValidateNickname rejects nicknames that are empty, oversized, or claim
// the reserved announcement sender.
func ValidateNickname(nick string) error {
	if nick == "" || len(nick) > MaxNicknameLen {
		return ErrNicknameInvalid
	}
	if nick == SystemSender {
		return ErrNicknameInvalid
	}
	return nil
}

func ValidateDisplayName(name string) error {
	if name == "" || len(name) > MaxDisplayNameLen {
		return ErrDisplayNameInvalid
	}
	return nil
}
