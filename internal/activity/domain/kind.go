package domain

// ActivityKind is the closed set of point-earning activities.
type ActivityKind string

const (
	KindCreatePost    ActivityKind = "CREATE_POST"
	KindCreateComment ActivityKind = "CREATE_COMMENT"
	KindLikePost      ActivityKind = "LIKE_POST"
	KindJoinMeeting   ActivityKind = "JOIN_MEETING"
	KindUserLogin     ActivityKind = "USER_LOGIN"
)

var kindPoints = map[ActivityKind]int64{
	KindCreatePost:    10,
	KindCreateComment: 5,
	KindLikePost:      2,
	KindJoinMeeting:   15,
	KindUserLogin:     1,
}

var kindNames = map[ActivityKind]string{
	KindCreatePost:    "Post created",
	KindCreateComment: "Comment created",
	KindLikePost:      "Post liked",
	KindJoinMeeting:   "Meeting joined",
	KindUserLogin:     "Daily login",
}

func (k ActivityKind) Valid() bool {
	_, ok := kindPoints[k]
	return ok
}

// Points returns the score awarded for a single occurrence of the activity.
func (k ActivityKind) Points() int64 {
	return kindPoints[k]
}

func (k ActivityKind) DisplayName() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return string(k)
}

// Operation distinguishes earning an activity from undoing one.
type Operation string

const (
	OperationRecord Operation = "RECORD"
	OperationRevoke Operation = "REVOKE"
)

func (o Operation) Valid() bool {
	return o == OperationRecord || o == OperationRevoke
}
