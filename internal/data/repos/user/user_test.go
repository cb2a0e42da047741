package user

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos/testutil"
	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
)

func TestUserRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewUserRepo(db, testutil.Logger(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, tx, []*types.User{
		{
			ID:           uuid.New(),
			Email:        " UserRepo@Example.com ",
			PasswordHash: "pw",
			DisplayName:  "Amina",
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 || created[0].Email != "userrepo@example.com" {
		t.Fatalf("Create: unexpected result: %+v", created)
	}

	gotByIDs, err := repo.GetByIDs(ctx, tx, []uuid.UUID{created[0].ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(gotByIDs) != 1 || gotByIDs[0].ID != created[0].ID {
		t.Fatalf("GetByIDs: unexpected result: %+v", gotByIDs)
	}

	gotByEmails, err := repo.GetByEmails(ctx, tx, []string{"USERREPO@example.com"})
	if err != nil {
		t.Fatalf("GetByEmails: %v", err)
	}
	if len(gotByEmails) != 1 || gotByEmails[0].Email != created[0].Email {
		t.Fatalf("GetByEmails: unexpected result: %+v", gotByEmails)
	}

	exists, err := repo.EmailExists(ctx, tx, created[0].Email)
	if err != nil {
		t.Fatalf("EmailExists: %v", err)
	}
	if !exists {
		t.Fatalf("EmailExists: expected true")
	}

	exists, err = repo.EmailExists(ctx, tx, "does-not-exist@example.com")
	if err != nil {
		t.Fatalf("EmailExists (missing): %v", err)
	}
	if exists {
		t.Fatalf("EmailExists (missing): expected false")
	}
}

func TestUserRepoPhoneLink(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewUserRepo(db, testutil.Logger(t))
	u := testutil.SeedUser(t, ctx, db, "phone@example.com")

	got, err := repo.GetByPhone(ctx, nil, "whatsapp:+254700000001")
	if err != nil || got != nil {
		t.Fatalf("GetByPhone before link: %v %v", got, err)
	}
	if err := repo.UpdatePhone(ctx, nil, u.ID, "whatsapp:+254700000001"); err != nil {
		t.Fatalf("UpdatePhone: %v", err)
	}
	got, err = repo.GetByPhone(ctx, nil, "whatsapp:+254700000001")
	if err != nil || got == nil || got.ID != u.ID {
		t.Fatalf("GetByPhone: %v %v", got, err)
	}
}
