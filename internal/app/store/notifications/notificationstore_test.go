package notificationstore_test

import (
	"testing"

	notificationstore "github.com/knockwise/knockwise/internal/app/store/notifications"
	"github.com/knockwise/knockwise/internal/domain/models"
	"github.com/knockwise/knockwise/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateManyAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u1, u2 := primitive.NewObjectID(), primitive.NewObjectID()
	zoneID := primitive.NewObjectID()
	err := store.CreateMany(ctx, []models.Notification{
		{UserID: u1, Type: models.NotificationZoneAssigned, Title: "t", Message: "m", ZoneID: &zoneID},
		{UserID: u2, Type: models.NotificationZoneAssigned, Title: "t", Message: "m", ZoneID: &zoneID},
	})
	if err != nil {
		t.Fatalf("CreateMany failed: %v", err)
	}

	got, err := store.ListByUser(ctx, u1, 10)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].ID.IsZero() || got[0].CreatedAt.IsZero() || got[0].Read {
		t.Errorf("unexpected notification: %+v", got[0])
	}

	if err := store.CreateMany(ctx, nil); err != nil {
		t.Errorf("CreateMany(nil) should be a no-op, got %v", err)
	}
}
