// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind はエラーの分類を表す。ボット層は分類ごとに応答を切り替える。
type ErrorKind string

const (
	// KindValidation は入力不正。同じステップで再入力を求める。
	KindValidation ErrorKind = "validation"
	// KindConflict は重複や失効した招待コード。
	KindConflict ErrorKind = "conflict"
	// KindAuthorization は権限不足。
	KindAuthorization ErrorKind = "authorization"
	// KindNotFound は削除済みの売上やチャンネルへの参照。
	KindNotFound ErrorKind = "not_found"
	// KindRemoteMirror はスプレッドシート連携の失敗。
	KindRemoteMirror ErrorKind = "remote_mirror"
	// KindDelivery は通知送信の失敗。
	KindDelivery ErrorKind = "delivery"
)

// AppError は統一エラーフォーマットを表す。
// Code はメッセージカタログのキーとしても使われる。
type AppError struct {
	Kind    ErrorKind
	Code    string // エラーコード
	Message string // ログ向けのエラーメッセージ
	Err     error  // 原因となったエラー
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *AppError) Unwrap() error {
	return e.Err
}

// KindOf はエラーの分類を返す。AppErrorでなければ空文字。
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind はエラーが指定の分類かどうかを返す。
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// 定義済みエラーコード
const (
	ErrCodeInvalidTime          = "INVALID_TIME"
	ErrCodeInvalidCost          = "INVALID_COST"
	ErrCodeInvalidPercent       = "INVALID_PERCENT"
	ErrCodePercentTooLarge      = "PERCENT_TOO_LARGE"
	ErrCodeInvalidPaymentStatus = "INVALID_PAYMENT_STATUS"
	ErrCodeEmptyInput           = "EMPTY_INPUT"
	ErrCodeChannelExists        = "CHANNEL_EXISTS"
	ErrCodeInviteExpired        = "INVITE_EXPIRED"
	ErrCodeNoWriteAccess        = "NO_WRITE_ACCESS"
	ErrCodeNoDeleteAccess       = "NO_DELETE_ACCESS"
	ErrCodeSaleNotFound         = "SALE_NOT_FOUND"
	ErrCodeChannelNotFound      = "CHANNEL_NOT_FOUND"
	ErrCodeMirrorFailed         = "MIRROR_FAILED"
	ErrCodeDeliveryFailed       = "DELIVERY_FAILED"
)

// NewInvalidTimeError は時刻入力の形式不正エラーを生成する。
func NewInvalidTimeError(input string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeInvalidTime,
		Message: fmt.Sprintf("時刻の形式が不正です: %q", input),
	}
}

// NewInvalidCostError は金額入力の不正エラーを生成する。
func NewInvalidCostError(input string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeInvalidCost,
		Message: fmt.Sprintf("金額として解釈できません: %q", input),
	}
}

// NewInvalidPercentError は百分率入力の不正エラーを生成する。
func NewInvalidPercentError(input string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeInvalidPercent,
		Message: fmt.Sprintf("百分率として解釈できません: %q", input),
	}
}

// NewPercentTooLargeError は100%を超える百分率のエラーを生成する。
func NewPercentTooLargeError(input string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    ErrCodePercentTooLarge,
		Message: fmt.Sprintf("百分率が100を超えています: %q", input),
	}
}

// NewInvalidPaymentStatusError は未定義の支払い状態が入力された場合のエラーを生成する。
func NewInvalidPaymentStatusError(input string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeInvalidPaymentStatus,
		Message: fmt.Sprintf("未定義の支払い状態です: %q", input),
	}
}

// NewEmptyInputError は空入力のエラーを生成する。
func NewEmptyInputError() *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    ErrCodeEmptyInput,
		Message: "入力が空です",
	}
}

// NewChannelExistsError はチャンネル名の重複エラーを生成する。
func NewChannelExistsError(title string) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Code:    ErrCodeChannelExists,
		Message: fmt.Sprintf("同名のチャンネルが既に存在します: %q", title),
	}
}

// NewInviteExpiredError は招待コードが存在しないか使用済みの場合のエラーを生成する。
func NewInviteExpiredError() *AppError {
	return &AppError{
		Kind:    KindConflict,
		Code:    ErrCodeInviteExpired,
		Message: "招待コードが無効または使用済みです",
	}
}

// NewNoWriteAccessError はチャンネルへの書き込み権限がない場合のエラーを生成する。
func NewNoWriteAccessError(userID, channelID int64) *AppError {
	return &AppError{
		Kind:    KindAuthorization,
		Code:    ErrCodeNoWriteAccess,
		Message: fmt.Sprintf("ユーザー %d はチャンネル %d の編集者ではありません", userID, channelID),
	}
}

// NewNoDeleteAccessError は売上の削除権限がない場合のエラーを生成する。
func NewNoDeleteAccessError(userID, saleID int64) *AppError {
	return &AppError{
		Kind:    KindAuthorization,
		Code:    ErrCodeNoDeleteAccess,
		Message: fmt.Sprintf("ユーザー %d は売上 %d を削除できません", userID, saleID),
	}
}

// NewSaleNotFoundError は売上が見つからない場合のエラーを生成する。
func NewSaleNotFoundError(saleID int64) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    ErrCodeSaleNotFound,
		Message: fmt.Sprintf("売上が見つかりません: %d", saleID),
	}
}

// NewChannelNotFoundError はチャンネルが見つからない場合のエラーを生成する。
func NewChannelNotFoundError(channelID int64) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    ErrCodeChannelNotFound,
		Message: fmt.Sprintf("チャンネルが見つかりません: %d", channelID),
	}
}

// NewMirrorError はスプレッドシート操作の失敗を包む。
func NewMirrorError(op string, err error) *AppError {
	return &AppError{
		Kind:    KindRemoteMirror,
		Code:    ErrCodeMirrorFailed,
		Message: fmt.Sprintf("スプレッドシートの%sに失敗しました", op),
		Err:     err,
	}
}

// NewDeliveryError は通知送信の失敗を包む。
func NewDeliveryError(userID int64, err error) *AppError {
	return &AppError{
		Kind:    KindDelivery,
		Code:    ErrCodeDeliveryFailed,
		Message: fmt.Sprintf("ユーザー %d への通知に失敗しました", userID),
		Err:     err,
	}
}
