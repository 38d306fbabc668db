package security

import (
	"log/slog"

	"event-workflow/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const usersCollection = "users"

// ProtectRoles keeps the users.role field under superuser control. Sign-ups
// through the record API always start as students and account owners cannot
// change their own role.
func ProtectRoles(app core.App) {
	app.OnRecordCreateRequest(usersCollection).BindFunc(func(e *core.RecordRequestEvent) error {
		if !e.HasSuperuserAuth() {
			e.Record.Set("role", string(models.RoleStudent))
		}
		return e.Next()
	})

	app.OnRecordUpdateRequest(usersCollection).BindFunc(func(e *core.RecordRequestEvent) error {
		if e.HasSuperuserAuth() {
			return e.Next()
		}

		requested := e.Record.GetString("role")
		if requested != e.Record.Original().GetString("role") {
			slog.Warn("Blocked role change", "userID", e.Record.Id, "role", requested)
			return apis.NewForbiddenError("Only administrators can change account roles.", nil)
		}
		return e.Next()
	})
}
