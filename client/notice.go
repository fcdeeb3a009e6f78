package client

// NoticeKind classifies a user-facing failure.
type NoticeKind int

const (
	NoticeValidation NoticeKind = iota + 1
	NoticeConfig
	NoticeAuth
	NoticeSubscription
	NoticeMutation
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeValidation:
		return "validation"
	case NoticeConfig:
		return "config"
	case NoticeAuth:
		return "auth"
	case NoticeSubscription:
		return "subscription"
	case NoticeMutation:
		return "mutation"
	default:
		return "unknown"
	}
}

// Messages shown to the user.
const (
	MsgEmptyText       = "리스트를 입력해 주세요."
	MsgNotConfigured   = "서비스 설정이 필요합니다."
	MsgNotSignedIn     = "로그인이 필요합니다."
	MsgSubscription    = "목록을 불러오지 못했습니다."
	MsgCreateFailed    = "할 일을 추가하지 못했습니다."
	MsgToggleFailed    = "완료 상태를 바꾸지 못했습니다."
	MsgDeleteFailed    = "할 일을 삭제하지 못했습니다."
	MsgReorderFailed   = "순서를 저장하지 못했습니다."
	MsgPopupClosed     = "로그인 창이 닫혔습니다."
	MsgUnauthorized    = "허용되지 않은 도메인입니다."
	MsgNotAllowed      = "이 로그인 방식은 사용할 수 없습니다."
	msgSignInFailedFmt = "로그인에 실패했습니다 (%s)"
)

// Notice is the most recent failure surfaced to the user.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
}

func (n Notice) Error() string {
	if n.Err != nil {
		return n.Message + ": " + n.Err.Error()
	}
	return n.Message
}

func (n Notice) Unwrap() error { return n.Err }
