package permission_test

import (
	"context"
	"testing"

	"taskboard/internal/model"
	"taskboard/internal/permission"
	"taskboard/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	assert.NoError(t, err)

	return gormDB, mock
}

func setupResolver(t *testing.T) (*permission.Resolver, sqlmock.Sqlmock) {
	gormDB, mock := setupMockDB(t)
	return permission.NewResolver(
		repository.NewBoardRepository(gormDB),
		repository.NewBoardMemberRepository(gormDB),
	), mock
}

func boardRow(boardID, ownerID uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "owner_id", "visibility", "archived"}).
		AddRow(boardID.String(), "Roadmap", ownerID.String(), model.VisibilityPrivate, false)
}

func TestForRole(t *testing.T) {
	cases := []struct {
		role string
		want permission.Permissions
	}{
		{model.RoleOwner, permission.Permissions{
			CanView: true, CanEdit: true, CanDelete: true,
			CanInvite: true, CanManageMembers: true, CanManageSettings: true,
		}},
		{model.RoleAdmin, permission.Permissions{
			CanView: true, CanEdit: true, CanDelete: true,
			CanInvite: true, CanManageMembers: true,
		}},
		{model.RoleEditor, permission.Permissions{CanView: true, CanEdit: true}},
		{model.RoleViewer, permission.Permissions{CanView: true}},
		{"stranger", permission.Permissions{}},
	}

	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			assert.Equal(t, tc.want, permission.ForRole(tc.role))
		})
	}
}

func TestResolver_OwnerShortcut(t *testing.T) {
	resolver, mock := setupResolver(t)

	boardID := uuid.New()
	ownerID := uuid.New()

	// Only the board lookup runs; ownership needs no membership row.
	mock.ExpectQuery(`SELECT .* FROM "boards" WHERE id = .*`).
		WithArgs(boardID, 1).
		WillReturnRows(boardRow(boardID, ownerID))

	grant, err := resolver.Resolve(context.Background(), ownerID, boardID)

	assert.NoError(t, err)
	assert.NotNil(t, grant)
	assert.Equal(t, model.RoleOwner, grant.Role)
	assert.True(t, grant.Permissions.CanManageSettings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolver_ActiveMember(t *testing.T) {
	resolver, mock := setupResolver(t)

	boardID := uuid.New()
	ownerID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "boards" WHERE id = .*`).
		WithArgs(boardID, 1).
		WillReturnRows(boardRow(boardID, ownerID))
	mock.ExpectQuery(`SELECT .* FROM "board_members" WHERE board_id = .*`).
		WithArgs(boardID, userID, model.StatusActive, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "board_id", "user_id", "role", "status"}).
			AddRow(uuid.NewString(), boardID.String(), userID.String(), model.RoleEditor, model.StatusActive))

	grant, err := resolver.Resolve(context.Background(), userID, boardID)

	assert.NoError(t, err)
	assert.NotNil(t, grant)
	assert.Equal(t, model.RoleEditor, grant.Role)
	assert.True(t, grant.Permissions.CanEdit)
	assert.False(t, grant.Permissions.CanDelete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolver_NoMembership(t *testing.T) {
	resolver, mock := setupResolver(t)

	boardID := uuid.New()
	userID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "boards" WHERE id = .*`).
		WithArgs(boardID, 1).
		WillReturnRows(boardRow(boardID, uuid.New()))
	mock.ExpectQuery(`SELECT .* FROM "board_members" WHERE board_id = .*`).
		WithArgs(boardID, userID, model.StatusActive, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	grant, err := resolver.Resolve(context.Background(), userID, boardID)

	assert.NoError(t, err)
	assert.Nil(t, grant)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolver_BoardMissing(t *testing.T) {
	resolver, mock := setupResolver(t)

	boardID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "boards" WHERE id = .*`).
		WithArgs(boardID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	grant, err := resolver.Resolve(context.Background(), uuid.New(), boardID)

	assert.NoError(t, err)
	assert.Nil(t, grant)
	assert.NoError(t, mock.ExpectationsWereMet())
}
