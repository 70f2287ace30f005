package service_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"taskboard/internal/audit"
	"taskboard/internal/model"
	"taskboard/internal/permission"
	"taskboard/internal/repository"
	"taskboard/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// fakeLocker grants or denies every acquire and records the traffic.
type fakeLocker struct {
	mu       sync.Mutex
	deny     bool
	acquires []string
	releases []string
}

func (f *fakeLocker) Acquire(_ context.Context, resource, _ string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires = append(f.acquires, resource)
	return !f.deny, nil
}

func (f *fakeLocker) Release(_ context.Context, resource, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases = append(f.releases, resource)
}

func (f *fakeLocker) IsLocked(_ context.Context, _ string) (bool, error) {
	return false, nil
}

type sentEvent struct {
	target string
	name   string
}

// fakeHub records every fan-out call.
type fakeHub struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeHub) ToBoard(_ uuid.UUID, event string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{target: "board", name: event})
}

func (f *fakeHub) ToUser(_ uuid.UUID, event string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{target: "user", name: event})
}

func (f *fakeHub) ToAdmins(event string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{target: "admins", name: event})
}

type fixture struct {
	sync  *service.Sync
	mock  sqlmock.Sqlmock
	locks *fakeLocker
	hub   *fakeHub
}

func setupSync(t *testing.T) *fixture {
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

	boardRepo := repository.NewBoardRepository(gormDB)
	columnRepo := repository.NewColumnRepository(gormDB)
	cardRepo := repository.NewCardRepository(gormDB)
	memberRepo := repository.NewBoardMemberRepository(gormDB)
	commentRepo := repository.NewCommentRepository(gormDB)

	locks := &fakeLocker{}
	hub := &fakeHub{}

	s := service.NewSync(
		boardRepo, columnRepo, cardRepo, memberRepo, commentRepo,
		permission.NewResolver(boardRepo, memberRepo),
		locks,
		audit.NewRecorder(repository.NewAuditRepository(gormDB)),
		hub,
		10*time.Second, 5*time.Minute,
	)

	return &fixture{sync: s, mock: mock, locks: locks, hub: hub}
}

func cardRow(cardID, columnID, creatorID uuid.UUID, position int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "column_id", "title", "created_by", "priority", "position"}).
		AddRow(cardID.String(), columnID.String(), "Fix login", creatorID.String(), model.PriorityMedium, position)
}

func columnRow(columnID, boardID uuid.UUID, position int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "board_id", "title", "position", "wip_limit"}).
		AddRow(columnID.String(), boardID.String(), "Doing", position, nil)
}

func boardRow(boardID, ownerID uuid.UUID, archived bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "owner_id", "visibility", "archived"}).
		AddRow(boardID.String(), "Roadmap", ownerID.String(), model.VisibilityPrivate, archived)
}

func (f *fixture) expectCard(cardID, columnID, creatorID uuid.UUID, position int) {
	f.mock.ExpectQuery(`SELECT .* FROM "cards" WHERE id = .*`).
		WithArgs(cardID, 1).
		WillReturnRows(cardRow(cardID, columnID, creatorID, position))
}

func (f *fixture) expectColumn(columnID, boardID uuid.UUID, position int) {
	f.mock.ExpectQuery(`SELECT .* FROM "columns" WHERE id = .*`).
		WithArgs(columnID, 1).
		WillReturnRows(columnRow(columnID, boardID, position))
}

func (f *fixture) expectCardCount(columnID uuid.UUID, count int) {
	f.mock.ExpectQuery(`SELECT count\(\*\) FROM "cards"`).
		WithArgs(columnID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

// expectAuthorize covers the board load in authorize plus the resolver's own
// board load. With actor == owner no membership query runs.
func (f *fixture) expectAuthorize(boardID, ownerID uuid.UUID, archived bool) {
	f.mock.ExpectQuery(`SELECT .* FROM "boards" WHERE id = .*`).
		WithArgs(boardID, 1).
		WillReturnRows(boardRow(boardID, ownerID, archived))
	f.mock.ExpectQuery(`SELECT .* FROM "boards" WHERE id = .*`).
		WithArgs(boardID, 1).
		WillReturnRows(boardRow(boardID, ownerID, archived))
}

func TestSync_MoveCard_NoOpSkipsLockAuditBroadcast(t *testing.T) {
	f := setupSync(t)

	cardID := uuid.New()
	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectCard(cardID, columnID, actorID, 1)
	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, false)

	card, err := f.sync.MoveCard(context.Background(), cardID, columnID, 1, actorID)

	assert.NoError(t, err)
	assert.Equal(t, 1, card.Position)
	assert.Empty(t, f.locks.acquires)
	assert.Empty(t, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_MoveCard_ForbiddenBeforeLock(t *testing.T) {
	f := setupSync(t)

	cardID := uuid.New()
	columnID := uuid.New()
	boardID := uuid.New()
	ownerID := uuid.New()
	actorID := uuid.New()

	f.expectCard(cardID, columnID, ownerID, 1)
	f.expectColumn(columnID, boardID, 0)
	f.mock.ExpectQuery(`SELECT .* FROM "boards" WHERE id = .*`).
		WithArgs(boardID, 1).
		WillReturnRows(boardRow(boardID, ownerID, false))
	f.mock.ExpectQuery(`SELECT .* FROM "boards" WHERE id = .*`).
		WithArgs(boardID, 1).
		WillReturnRows(boardRow(boardID, ownerID, false))
	// The actor is only a viewer: view yes, edit no.
	f.mock.ExpectQuery(`SELECT .* FROM "board_members" WHERE board_id = .*`).
		WithArgs(boardID, actorID, model.StatusActive, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "board_id", "user_id", "role", "status"}).
			AddRow(uuid.NewString(), boardID.String(), actorID.String(), model.RoleViewer, model.StatusActive))

	_, err := f.sync.MoveCard(context.Background(), cardID, columnID, 0, actorID)

	assert.ErrorIs(t, err, service.ErrForbidden)
	assert.Empty(t, f.locks.acquires)
	assert.Empty(t, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_MoveCard_LockDeniedIsConflict(t *testing.T) {
	f := setupSync(t)
	f.locks.deny = true

	cardID := uuid.New()
	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectCard(cardID, columnID, actorID, 1)
	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, false)
	f.expectCardCount(columnID, 3)

	_, err := f.sync.MoveCard(context.Background(), cardID, columnID, 0, actorID)

	assert.ErrorIs(t, err, service.ErrConflict)
	assert.Equal(t, []string{"card:move:" + cardID.String()}, f.locks.acquires)
	// A denied acquire holds nothing, so nothing is released.
	assert.Empty(t, f.locks.releases)
	assert.Empty(t, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_MoveCard_ArchivedBoardIsConflict(t *testing.T) {
	f := setupSync(t)

	cardID := uuid.New()
	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectCard(cardID, columnID, actorID, 1)
	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, true)

	_, err := f.sync.MoveCard(context.Background(), cardID, columnID, 0, actorID)

	assert.ErrorIs(t, err, service.ErrConflict)
	assert.Empty(t, f.locks.acquires)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_MoveCard_SameColumnHappyPath(t *testing.T) {
	f := setupSync(t)

	cardID := uuid.New()
	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectCard(cardID, columnID, actorID, 1)
	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, false)
	f.expectCardCount(columnID, 3)

	// The repository move runs in its own transaction.
	f.mock.ExpectBegin()
	f.expectCard(cardID, columnID, actorID, 1)
	f.expectCardCount(columnID, 3)
	f.mock.ExpectExec(`UPDATE "cards" SET "position"=position \+ \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE "cards" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	// Audit append.
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`INSERT INTO "audit_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
	f.mock.ExpectCommit()

	card, err := f.sync.MoveCard(context.Background(), cardID, columnID, 0, actorID)

	assert.NoError(t, err)
	assert.Equal(t, 0, card.Position)
	cardLock := "card:move:" + cardID.String()
	listLock := "column:cards:" + columnID.String()
	assert.Equal(t, []string{cardLock, listLock}, f.locks.acquires)
	// Releases run in reverse acquisition order.
	assert.Equal(t, []string{listLock, cardLock}, f.locks.releases)
	assert.Equal(t, []sentEvent{{target: "board", name: "card:update"}}, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_MoveCard_ClampedTargetIsNoOp(t *testing.T) {
	f := setupSync(t)

	cardID := uuid.New()
	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	// Last card of three, target far past the end: the move clamps back to
	// the card's current slot and changes nothing.
	f.expectCard(cardID, columnID, actorID, 2)
	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, false)
	f.expectCardCount(columnID, 3)

	card, err := f.sync.MoveCard(context.Background(), cardID, columnID, 99, actorID)

	assert.NoError(t, err)
	assert.Equal(t, 2, card.Position)
	assert.Empty(t, f.locks.acquires)
	assert.Empty(t, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_MoveCard_CrossColumnLocksBothCardLists(t *testing.T) {
	f := setupSync(t)

	cardID := uuid.New()
	sourceID := uuid.New()
	targetID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectCard(cardID, sourceID, actorID, 0)
	f.expectColumn(sourceID, boardID, 0)
	f.expectColumn(targetID, boardID, 1)
	f.expectAuthorize(boardID, actorID, false)

	f.mock.ExpectBegin()
	f.expectCard(cardID, sourceID, actorID, 0)
	f.mock.ExpectExec(`UPDATE "cards" SET "position"=position - 1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.expectCardCount(targetID, 1)
	f.mock.ExpectExec(`UPDATE "cards" SET "position"=position \+ 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE "cards" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`INSERT INTO "audit_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
	f.mock.ExpectCommit()

	card, err := f.sync.MoveCard(context.Background(), cardID, targetID, 0, actorID)

	assert.NoError(t, err)
	assert.Equal(t, targetID, card.ColumnID)

	// Both column card-list locks are held, in sorted order regardless of
	// move direction, after the card's own lock.
	listLocks := []string{"column:cards:" + sourceID.String(), "column:cards:" + targetID.String()}
	sort.Strings(listLocks)
	assert.Equal(t, append([]string{"card:move:" + cardID.String()}, listLocks...), f.locks.acquires)
	assert.Equal(t, []string{listLocks[1], listLocks[0], "card:move:" + cardID.String()}, f.locks.releases)
	assert.Equal(t, []sentEvent{{target: "board", name: "card:update"}}, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_CreateCard_TakesColumnListLock(t *testing.T) {
	f := setupSync(t)

	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, false)

	f.mock.ExpectBegin()
	f.expectCardCount(columnID, 0)
	f.mock.ExpectQuery(`INSERT INTO "cards"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
	f.mock.ExpectCommit()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`INSERT INTO "audit_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
	f.mock.ExpectCommit()

	card, err := f.sync.CreateCard(context.Background(), service.CreateCardInput{
		ColumnID: columnID,
		Title:    "Fix login",
	}, actorID)

	assert.NoError(t, err)
	assert.Equal(t, 0, card.Position)
	assert.Equal(t, []string{"column:cards:" + columnID.String()}, f.locks.acquires)
	assert.Equal(t, []string{"column:cards:" + columnID.String()}, f.locks.releases)
	assert.Equal(t, []sentEvent{{target: "board", name: "card:update"}}, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_CreateCard_ListLockDeniedIsConflict(t *testing.T) {
	f := setupSync(t)
	f.locks.deny = true

	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, false)

	_, err := f.sync.CreateCard(context.Background(), service.CreateCardInput{
		ColumnID: columnID,
		Title:    "Fix login",
	}, actorID)

	assert.ErrorIs(t, err, service.ErrConflict)
	assert.Empty(t, f.locks.releases)
	assert.Empty(t, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_DeleteCard_LocksCardAndColumnList(t *testing.T) {
	f := setupSync(t)

	cardID := uuid.New()
	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectCard(cardID, columnID, actorID, 1)
	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, false)

	f.mock.ExpectBegin()
	f.expectCard(cardID, columnID, actorID, 1)
	f.mock.ExpectExec(`UPDATE "cards" SET "deleted_at"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE "cards" SET "position"=position - 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`INSERT INTO "audit_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
	f.mock.ExpectCommit()

	err := f.sync.DeleteCard(context.Background(), cardID, actorID)

	assert.NoError(t, err)
	cardLock := "card:move:" + cardID.String()
	listLock := "column:cards:" + columnID.String()
	assert.Equal(t, []string{cardLock, listLock}, f.locks.acquires)
	assert.Equal(t, []string{listLock, cardLock}, f.locks.releases)
	assert.Equal(t, []sentEvent{{target: "board", name: "card:update"}}, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_MoveColumn_NoOp(t *testing.T) {
	f := setupSync(t)

	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectColumn(columnID, boardID, 2)
	f.expectAuthorize(boardID, actorID, false)

	column, err := f.sync.MoveColumn(context.Background(), columnID, 2, actorID)

	assert.NoError(t, err)
	assert.Equal(t, 2, column.Position)
	assert.Empty(t, f.locks.acquires)
	assert.Empty(t, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_MoveColumn_ClampedTargetIsNoOp(t *testing.T) {
	f := setupSync(t)

	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectColumn(columnID, boardID, 2)
	f.expectAuthorize(boardID, actorID, false)
	f.mock.ExpectQuery(`SELECT count\(\*\) FROM "columns"`).
		WithArgs(boardID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	column, err := f.sync.MoveColumn(context.Background(), columnID, 99, actorID)

	assert.NoError(t, err)
	assert.Equal(t, 2, column.Position)
	assert.Empty(t, f.locks.acquires)
	assert.Empty(t, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_ReorderColumns_DuplicateIDs(t *testing.T) {
	f := setupSync(t)

	boardID := uuid.New()
	actorID := uuid.New()
	columnID := uuid.New()

	f.expectAuthorize(boardID, actorID, false)

	err := f.sync.ReorderColumns(context.Background(), boardID, []uuid.UUID{columnID, columnID}, actorID)

	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Empty(t, f.locks.acquires)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_ReorderColumns_BroadcastsAndAudits(t *testing.T) {
	f := setupSync(t)

	boardID := uuid.New()
	actorID := uuid.New()
	first := uuid.New()
	second := uuid.New()

	f.expectAuthorize(boardID, actorID, false)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`SELECT count\(\*\) FROM "columns"`).
		WithArgs(boardID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	f.mock.ExpectExec(`UPDATE "columns" SET "position"=\$1`).
		WithArgs(0, first, boardID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE "columns" SET "position"=\$1`).
		WithArgs(1, second, boardID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`INSERT INTO "audit_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))
	f.mock.ExpectCommit()

	err := f.sync.ReorderColumns(context.Background(), boardID, []uuid.UUID{first, second}, actorID)

	assert.NoError(t, err)
	assert.Equal(t, []string{"board:columns:" + boardID.String()}, f.locks.acquires)
	assert.Equal(t, []sentEvent{{target: "board", name: "board:update"}}, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_LockCardForEdit_DenialGoesToRequesterOnly(t *testing.T) {
	f := setupSync(t)
	f.locks.deny = true

	cardID := uuid.New()
	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectCard(cardID, columnID, actorID, 0)
	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, false)

	locked, err := f.sync.LockCardForEdit(context.Background(), cardID, actorID)

	assert.NoError(t, err)
	assert.False(t, locked)
	assert.Equal(t, []sentEvent{{target: "user", name: "card:edit:lock_failed"}}, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_LockCardForEdit_SuccessBroadcastsToBoard(t *testing.T) {
	f := setupSync(t)

	cardID := uuid.New()
	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectCard(cardID, columnID, actorID, 0)
	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, false)

	locked, err := f.sync.LockCardForEdit(context.Background(), cardID, actorID)

	assert.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, []string{"card:edit:" + cardID.String()}, f.locks.acquires)
	assert.Equal(t, []sentEvent{{target: "board", name: "card:edit:locked"}}, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSync_UnlockCardForEdit_ReleasesAndBroadcasts(t *testing.T) {
	f := setupSync(t)

	cardID := uuid.New()
	columnID := uuid.New()
	boardID := uuid.New()
	actorID := uuid.New()

	f.expectCard(cardID, columnID, actorID, 0)
	f.expectColumn(columnID, boardID, 0)
	f.expectAuthorize(boardID, actorID, false)

	err := f.sync.UnlockCardForEdit(context.Background(), cardID, actorID)

	assert.NoError(t, err)
	assert.Equal(t, []string{"card:edit:" + cardID.String()}, f.locks.releases)
	assert.Equal(t, []sentEvent{{target: "board", name: "card:edit:unlocked"}}, f.hub.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
