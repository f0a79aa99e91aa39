package apperrors

import (
	"errors"

	"github.com/palemoky/mafia-night/internal/protocol"
)

// GameError 游戏错误（房间、对局和会话共享）
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

func newError(code int) *GameError {
	return &GameError{Code: code, Message: protocol.ErrorMessages[code]}
}

// 房间错误
var (
	ErrRoomNotFound = newError(protocol.ErrCodeRoomNotFound)
	ErrRoomFull     = newError(protocol.ErrCodeRoomFull)
	ErrNotInRoom    = newError(protocol.ErrCodeNotInRoom)
	ErrGameStarted  = newError(protocol.ErrCodeGameStarted)
	ErrNameInvalid  = newError(protocol.ErrCodeNameInvalid)
	ErrNameTaken    = newError(protocol.ErrCodeNameTaken)
	ErrNotHost      = newError(protocol.ErrCodeNotHost)
	ErrPlayerCount  = newError(protocol.ErrCodePlayerCount)
)

// 对局错误
var (
	ErrWrongPhase    = newError(protocol.ErrCodeWrongPhase)
	ErrWrongRole     = newError(protocol.ErrCodeWrongRole)
	ErrPlayerDead    = newError(protocol.ErrCodePlayerDead)
	ErrAlreadyActed  = newError(protocol.ErrCodeAlreadyActed)
	ErrInvalidTarget = newError(protocol.ErrCodeInvalidTarget)
	ErrTargetDead    = newError(protocol.ErrCodeTargetDead)
	ErrSelfTarget    = newError(protocol.ErrCodeSelfTarget)
	ErrInvalidAction = newError(protocol.ErrCodeInvalidAction)
	ErrChatClosed    = newError(protocol.ErrCodeChatClosed)
	ErrRateLimited   = newError(protocol.ErrCodeRateLimit)
)

// 会话错误
var (
	ErrSessionUnknown   = newError(protocol.ErrCodeSessionUnknown)
	ErrReconnectExpired = newError(protocol.ErrCodeReconnectExpired)
)

// CodeOf 提取错误码，非 GameError 返回 ErrCodeUnknown
func CodeOf(err error) int {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return protocol.ErrCodeUnknown
}
