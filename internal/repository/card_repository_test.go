package repository_test

import (
	"context"
	"testing"

	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func cardRows(cardID, columnID, creatorID uuid.UUID, title string, position int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "column_id", "title", "created_by", "priority", "position"}).
		AddRow(cardID.String(), columnID.String(), title, creatorID.String(), model.PriorityMedium, position)
}

func TestCardRepository_GetByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	cardRepo := repository.NewCardRepository(gormDB)

	cardID := uuid.New()

	mock.ExpectQuery(`SELECT .* FROM "cards" WHERE id = .*`).
		WithArgs(cardID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := cardRepo.GetByID(context.Background(), cardID)

	assert.ErrorIs(t, err, repository.ErrCardNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_Move_SameColumn(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	cardRepo := repository.NewCardRepository(gormDB)

	cardID := uuid.New()
	columnID := uuid.New()
	creatorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "cards" WHERE id = .*`).
		WithArgs(cardID, 1).
		WillReturnRows(cardRows(cardID, columnID, creatorID, "Fix login", 1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "cards"`).
		WithArgs(columnID).
		WillReturnRows(countRows(3))
	// Moving from 1 to 0 pushes the card at 0 forward by one.
	mock.ExpectExec(`UPDATE "cards" SET "position"=position \+ \$1`).
		WithArgs(1, sqlmock.AnyArg(), columnID, 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "cards" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	card, err := cardRepo.Move(context.Background(), cardID, columnID, 0)

	assert.NoError(t, err)
	assert.Equal(t, 0, card.Position)
	assert.Equal(t, columnID, card.ColumnID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_Move_CrossColumn(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	cardRepo := repository.NewCardRepository(gormDB)

	cardID := uuid.New()
	sourceID := uuid.New()
	targetID := uuid.New()
	creatorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "cards" WHERE id = .*`).
		WithArgs(cardID, 1).
		WillReturnRows(cardRows(cardID, sourceID, creatorID, "Fix login", 1))
	// Close the gap in the source column.
	mock.ExpectExec(`UPDATE "cards" SET "position"=position - 1`).
		WithArgs(sqlmock.AnyArg(), sourceID, 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "cards"`).
		WithArgs(targetID).
		WillReturnRows(countRows(2))
	// Open a gap at position 0 in the destination column.
	mock.ExpectExec(`UPDATE "cards" SET "position"=position \+ 1`).
		WithArgs(sqlmock.AnyArg(), targetID, 0).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE "cards" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	card, err := cardRepo.Move(context.Background(), cardID, targetID, 0)

	assert.NoError(t, err)
	assert.Equal(t, targetID, card.ColumnID)
	assert.Equal(t, 0, card.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_Move_CrossColumn_ClampsToEnd(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	cardRepo := repository.NewCardRepository(gormDB)

	cardID := uuid.New()
	sourceID := uuid.New()
	targetID := uuid.New()
	creatorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "cards" WHERE id = .*`).
		WithArgs(cardID, 1).
		WillReturnRows(cardRows(cardID, sourceID, creatorID, "Fix login", 0))
	mock.ExpectExec(`UPDATE "cards" SET "position"=position - 1`).
		WithArgs(sqlmock.AnyArg(), sourceID, 0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "cards"`).
		WithArgs(targetID).
		WillReturnRows(countRows(2))
	// Target 50 clamps to 2, the end of a two-card column: no gap to open.
	mock.ExpectExec(`UPDATE "cards" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	card, err := cardRepo.Move(context.Background(), cardID, targetID, 50)

	assert.NoError(t, err)
	assert.Equal(t, 2, card.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_Move_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	cardRepo := repository.NewCardRepository(gormDB)

	cardID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "cards" WHERE id = .*`).
		WithArgs(cardID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := cardRepo.Move(context.Background(), cardID, uuid.New(), 0)

	assert.ErrorIs(t, err, repository.ErrCardNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_Delete_SoftDeletesAndClosesGap(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	cardRepo := repository.NewCardRepository(gormDB)

	cardID := uuid.New()
	columnID := uuid.New()
	creatorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "cards" WHERE id = .*`).
		WithArgs(cardID, 1).
		WillReturnRows(cardRows(cardID, columnID, creatorID, "Fix login", 1))
	// Soft delete: the row stays, deleted_at is stamped.
	mock.ExpectExec(`UPDATE "cards" SET "deleted_at"=`).
		WithArgs(sqlmock.AnyArg(), cardID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Remaining visible siblings above the slot fall back by one.
	mock.ExpectExec(`UPDATE "cards" SET "position"=position - 1`).
		WithArgs(sqlmock.AnyArg(), columnID, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := cardRepo.Delete(context.Background(), cardID)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_AssignUser_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	cardRepo := repository.NewCardRepository(gormDB)

	cardID := uuid.New()
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "cards" SET "assigned_to"=`).
		WithArgs(userID, sqlmock.AnyArg(), cardID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := cardRepo.AssignUser(context.Background(), cardID, userID)

	assert.ErrorIs(t, err, repository.ErrCardNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
