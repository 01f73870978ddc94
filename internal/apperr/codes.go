package apperr

// Code is a machine-readable error code.
type Code string

// Kind groups codes into the classes callers map to transport statuses.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindPermission
)

const (
	CodeUnknown Code = "UNKNOWN"

	// Member errors
	CodeMemberDead         Code = "MEMBER_DEAD"
	CodeMemberAlive        Code = "MEMBER_ALIVE"
	CodeMemberNotInProject Code = "MEMBER_NOT_IN_PROJECT"
	CodeMemberExists       Code = "MEMBER_ALREADY_JOINED"
	CodeInvalidHP          Code = "INVALID_HP"
	CodeInvalidMaxHP       Code = "INVALID_MAX_HP"
	CodeInvalidScore       Code = "INVALID_SCORE"
	CodeInvalidHealValue   Code = "INVALID_HEAL_VALUE"

	// Boss errors
	CodeBossAlreadySetUp  Code = "BOSS_ALREADY_SET_UP"
	CodeBossNotSetUp      Code = "BOSS_NOT_SET_UP"
	CodeBossDead          Code = "BOSS_DEAD"
	CodeNoBossTypes       Code = "NO_BOSS_TYPES"
	CodeNoSpecialBossLeft Code = "NO_SPECIAL_BOSS_LEFT"
	CodeEmptyBacklog      Code = "EMPTY_BACKLOG"
	CodeInvalidBossPhase  Code = "INVALID_BOSS_PHASE"
	CodeNoNextPhase       Code = "NO_NEXT_PHASE"

	// Task errors
	CodeTaskNotInProject       Code = "TASK_NOT_IN_PROJECT"
	CodeTaskNotCompleted       Code = "TASK_NOT_COMPLETED"
	CodeTaskCompleted          Code = "TASK_ALREADY_COMPLETED"
	CodeTaskNoAssignees        Code = "TASK_NO_ASSIGNEES"
	CodeTaskInvalidTitle       Code = "TASK_TITLE_REQUIRED"
	CodeTaskInvalidPriority    Code = "TASK_INVALID_PRIORITY"
	CodeTaskInvalidTransition  Code = "TASK_INVALID_STATUS_TRANSITION"
	CodeTaskAlreadyAssigned    Code = "TASK_ALREADY_ASSIGNED"
	CodeTaskNotAssigned        Code = "TASK_NOT_ASSIGNED"
	CodeProjectNameEmpty       Code = "PROJECT_NAME_EMPTY"
	CodeProjectClosed          Code = "PROJECT_CLOSED"
	CodeReviewDescriptionEmpty Code = "REVIEW_DESCRIPTION_EMPTY"
	CodeReviewNoReceivers      Code = "REVIEW_NO_RECEIVERS"

	// Item errors
	CodeItemNotOwned Code = "ITEM_NOT_OWNED"

	// Access errors
	CodeNotProjectMember Code = "NOT_PROJECT_MEMBER"
	CodeNotProjectOwner  Code = "NOT_PROJECT_OWNER"
	CodeOwnerCannotLeave Code = "OWNER_CANNOT_LEAVE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Kind returns the class of the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeNotFound:
		return KindNotFound
	case CodeNotProjectMember, CodeNotProjectOwner:
		return KindPermission
	case CodeUnknown, "":
		return KindInternal
	default:
		return KindValidation
	}
}
