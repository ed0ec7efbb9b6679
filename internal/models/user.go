package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents a workshop staff role
type Role string

const (
	RoleManager        Role = "Manager"
	RoleAdminBengkel   Role = "Admin Bengkel"
	RoleForeman        Role = "Foreman"
	RoleServiceAdvisor Role = "Service Advisor"
	RoleCRC            Role = "CRC"
	RoleFinance        Role = "Finance"
	RolePartman        Role = "Partman"
	RoleAssPartman     Role = "Ass. Partman"
)

// Permission actions checked by RequirePermission and by the services.
const (
	PermViewJobs        = "view_jobs"
	PermViewKPI         = "view_kpi"
	PermViewInventory   = "view_inventory"
	PermCreateJob       = "create_job"
	PermEditJob         = "edit_job"
	PermSaveEstimate    = "save_estimate"
	PermTransitionJob   = "transition_job"
	PermLogMechanic     = "log_mechanic"
	PermToggleRework    = "toggle_rework"
	PermManageParts     = "manage_parts"
	PermManageInventory = "manage_inventory"
	PermAssignMaterials = "assign_materials"
	PermCloseCosts      = "close_costs"
	PermReopenWO        = "reopen_wo"
	PermSaveSettings    = "save_settings"
	PermManageUsers     = "manage_users"
	PermLogFollowUp     = "log_followup"
	PermRecordSurvey    = "record_survey"
	PermUploadPhoto     = "upload_photo"
)

// User represents a staff account
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username      string             `bson:"username" json:"username"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"password_hash" json:"-"`
	Role          Role               `bson:"role" json:"role"`
	FinanceAccess bool               `bson:"finance_access" json:"finance_access"`
	DisplayName   string             `bson:"display_name" json:"display_name"`
	IsActive      bool               `bson:"is_active" json:"is_active"`
	LastLogin     *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	FinanceAccess bool   `json:"finance_access"`
	Exp           int64  `json:"exp"`
}

// Actor is the identity performing a mutation. It is recorded in job history
// and checked by the role-restricted workflow operations.
type Actor struct {
	UserID        string
	Email         string
	Role          Role
	FinanceAccess bool
}

// Name is what gets written to history entries and lastUpdatedBy.
func (a Actor) Name() string {
	if a.Email != "" {
		return a.Email
	}
	return a.UserID
}

// Can reports whether the actor may perform action.
func (a Actor) Can(action string) bool {
	return roleAllows(a.Role, a.FinanceAccess, action)
}

// ActorFromClaims builds the actor for a validated token.
func ActorFromClaims(c *Claims) Actor {
	return Actor{UserID: c.UserID, Email: c.Email, Role: c.Role, FinanceAccess: c.FinanceAccess}
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleManager, RoleAdminBengkel, RoleForeman, RoleServiceAdvisor,
		RoleCRC, RoleFinance, RolePartman, RoleAssPartman:
		return true
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	return roleAllows(u.Role, u.FinanceAccess, action)
}

func roleAllows(role Role, financeAccess bool, action string) bool {
	if role == RoleManager {
		return true
	}
	if !IsValidRole(role) {
		return false
	}
	switch action {
	case PermViewJobs, PermViewKPI, PermViewInventory:
		return true
	case PermCreateJob, PermEditJob, PermSaveEstimate:
		return oneOf(role, RoleAdminBengkel, RoleForeman, RoleServiceAdvisor, RoleCRC)
	case PermTransitionJob, PermLogMechanic, PermUploadPhoto:
		return oneOf(role, RoleAdminBengkel, RoleForeman, RoleServiceAdvisor)
	case PermToggleRework:
		return role == RoleForeman
	case PermManageParts:
		return oneOf(role, RolePartman, RoleAssPartman)
	case PermManageInventory, PermAssignMaterials:
		return oneOf(role, RolePartman, RoleAssPartman, RoleForeman)
	case PermCloseCosts:
		return role == RoleFinance || financeAccess
	case PermLogFollowUp, PermRecordSurvey:
		return oneOf(role, RoleCRC, RoleServiceAdvisor)
	default:
		// reopen_wo, save_settings, manage_users and unknown actions
		return false
	}
}

func oneOf(role Role, roles ...Role) bool {
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	return false
}
