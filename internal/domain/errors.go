package domain

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomIDsExhausted   = errors.New("room id space exhausted")
	ErrNicknameTaken      = errors.New("nickname already taken in this room")
	ErrNicknameInvalid    = errors.New("invalid nickname")
	ErrDisplayNameInvalid = errors.New("invalid display name")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialClash    = errors.New("credential already issued")
	ErrMediaUnsupported   = errors.New("unsupported media payload")
)
