// File: internal/usecase/fulfillment_uc_test.go
package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vpn-subscription-billing/internal/domain/model"
	"vpn-subscription-billing/internal/domain/ports/adapter"
	"vpn-subscription-billing/internal/usecase"
)

type fulfillUCDeps struct {
	intents      *memIntentRepo
	tariffs      *memTariffRepo
	promos       *memPromoRepo
	users        *memUserRepo
	provisioning *fakeProvisioning
	botSync      *fakeBotSync
	cache        *fakeCache
}

func newFulfillUCDeps() *fulfillUCDeps {
	deps := &fulfillUCDeps{
		intents:      newMemIntentRepo(),
		tariffs:      newMemTariffRepo(),
		promos:       newMemPromoRepo(),
		users:        newMemUserRepo(),
		provisioning: newFakeProvisioning(),
		botSync:      &fakeBotSync{},
		cache:        &fakeCache{},
	}
	deps.users.put(&model.User{ID: "user-1", ProvisioningID: "ext-1"})
	deps.tariffs.put(&model.Tariff{
		ID:           "tariff-1",
		Prices:       map[string]int64{"RUB": 29900},
		DurationDays: 30,
		GroupID:      "premium",
	})
	return deps
}

func (d *fulfillUCDeps) build() usecase.FulfillmentUseCase {
	return usecase.NewFulfillmentUseCase(
		d.intents, d.tariffs, d.promos, d.users,
		d.provisioning, d.botSync, d.cache, inlineDispatcher{}, fakeTxManager{},
		usecase.BillingRates{BalanceCurrency: "RUB", Rates: map[string]float64{"RUB": 1, "XTR": 1.7}},
		newTestLogger(),
	)
}

func (d *fulfillUCDeps) seedPendingIntent(id string, tariffID, promoID *string, amount int64, currency string) {
	now := time.Now()
	d.intents.Save(context.Background(), nil, &model.PaymentIntent{
		ID:                id,
		OrderID:           "order-" + id,
		UserID:            "user-1",
		TariffID:          tariffID,
		Status:            model.PaymentStatusPending,
		Amount:            amount,
		Currency:          currency,
		Provider:          "yookassa",
		ProviderReference: "ref-" + id,
		PromoCodeID:       promoID,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
}

func strPtr(s string) *string { return &s }

func TestFulfillmentUseCase_HandlePaid(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate notifications fulfill exactly once", func(t *testing.T) {
		deps := newFulfillUCDeps()
		deps.seedPendingIntent("i1", strPtr("tariff-1"), nil, 29900, "RUB")
		uc := deps.build()

		first, err := uc.HandlePaid(ctx, "order-i1")
		if err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		if first.Status != usecase.MarkPaidTransitioned {
			t.Fatalf("first delivery status = %v, want Transitioned", first.Status)
		}

		second, err := uc.HandlePaid(ctx, "order-i1")
		if err != nil {
			t.Fatalf("second delivery: %v", err)
		}
		if second.Status != usecase.MarkPaidAlreadyPaid {
			t.Fatalf("second delivery status = %v, want AlreadyPaid", second.Status)
		}

		if n := deps.provisioning.updateCount(); n != 1 {
			t.Errorf("provisioning updated %d times, want exactly 1", n)
		}
	})

	t.Run("lookup by provider reference", func(t *testing.T) {
		deps := newFulfillUCDeps()
		deps.seedPendingIntent("i2", strPtr("tariff-1"), nil, 29900, "RUB")
		uc := deps.build()

		res, err := uc.HandlePaid(ctx, "ref-i2")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.Status != usecase.MarkPaidTransitioned {
			t.Fatalf("status = %v, want Transitioned", res.Status)
		}
	})

	t.Run("unknown key reports not found without error", func(t *testing.T) {
		deps := newFulfillUCDeps()
		uc := deps.build()

		res, err := uc.HandlePaid(ctx, "order-unknown")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.Status != usecase.MarkPaidNotFound {
			t.Fatalf("status = %v, want NotFound", res.Status)
		}
	})

	t.Run("expired subscription extends from now", func(t *testing.T) {
		deps := newFulfillUCDeps()
		deps.provisioning.state["ext-1"] = &adapter.ProvisionedUser{
			ExternalID: "ext-1",
			ExpireAt:   time.Now().AddDate(0, 0, -10),
		}
		deps.seedPendingIntent("i3", strPtr("tariff-1"), nil, 29900, "RUB")
		uc := deps.build()

		if _, err := uc.HandlePaid(ctx, "order-i3"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		upd := deps.provisioning.updates[0]
		want := time.Now().AddDate(0, 0, 30)
		if diff := upd.ExpireAt.Sub(want); diff < -time.Minute || diff > time.Minute {
			t.Errorf("expire at %v, want ~%v", upd.ExpireAt, want)
		}
	})

	t.Run("active subscription extends from its current expiry", func(t *testing.T) {
		deps := newFulfillUCDeps()
		current := time.Now().AddDate(0, 0, 12)
		deps.provisioning.state["ext-1"] = &adapter.ProvisionedUser{
			ExternalID: "ext-1",
			ExpireAt:   current,
		}
		deps.seedPendingIntent("i4", strPtr("tariff-1"), nil, 29900, "RUB")
		uc := deps.build()

		if _, err := uc.HandlePaid(ctx, "order-i4"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		upd := deps.provisioning.updates[0]
		want := current.AddDate(0, 0, 30)
		if !upd.ExpireAt.Equal(want) {
			t.Errorf("expire at %v, want %v", upd.ExpireAt, want)
		}
	})

	t.Run("tariff group overwrites current assignment", func(t *testing.T) {
		deps := newFulfillUCDeps()
		deps.provisioning.state["ext-1"] = &adapter.ProvisionedUser{
			ExternalID:   "ext-1",
			ActiveGroups: []string{"basic", "trial"},
		}
		deps.seedPendingIntent("i5", strPtr("tariff-1"), nil, 29900, "RUB")
		uc := deps.build()

		if _, err := uc.HandlePaid(ctx, "order-i5"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		upd := deps.provisioning.updates[0]
		if len(upd.ActiveGroups) != 1 || upd.ActiveGroups[0] != "premium" {
			t.Errorf("active groups = %v, want [premium]", upd.ActiveGroups)
		}
	})

	t.Run("promo consumed once, after fulfillment", func(t *testing.T) {
		deps := newFulfillUCDeps()
		deps.promos.put(&model.PromoCode{ID: "promo-1", Code: "HALF", Type: model.PromoTypePercent, Value: 50, UsesLeft: 1})
		deps.seedPendingIntent("i6", strPtr("tariff-1"), strPtr("promo-1"), 14950, "RUB")
		uc := deps.build()

		if _, err := uc.HandlePaid(ctx, "order-i6"); err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		if _, err := uc.HandlePaid(ctx, "order-i6"); err != nil {
			t.Fatalf("second delivery: %v", err)
		}
		if left := deps.promos.usesLeft("promo-1"); left != 0 {
			t.Errorf("uses_left = %d, want 0", left)
		}
	})

	t.Run("provisioning failure keeps intent paid and defers side effects", func(t *testing.T) {
		deps := newFulfillUCDeps()
		deps.provisioning.updErr = context.DeadlineExceeded
		deps.promos.put(&model.PromoCode{ID: "promo-1", Code: "HALF", Type: model.PromoTypePercent, Value: 50, UsesLeft: 1})
		deps.seedPendingIntent("i7", strPtr("tariff-1"), strPtr("promo-1"), 14950, "RUB")
		uc := deps.build()

		res, err := uc.HandlePaid(ctx, "order-i7")
		if err != nil {
			t.Fatalf("provisioning failure must not bubble to the webhook: %v", err)
		}
		if res.Status != usecase.MarkPaidTransitioned {
			t.Fatalf("status = %v, want Transitioned", res.Status)
		}

		stored, err := deps.intents.FindByLookupKey(ctx, nil, "order-i7")
		if err != nil {
			t.Fatalf("intent lookup: %v", err)
		}
		if stored.Status != model.PaymentStatusPaid {
			t.Errorf("intent status = %s, the financial fact must stay paid", stored.Status)
		}
		if left := deps.promos.usesLeft("promo-1"); left != 1 {
			t.Errorf("promo consumed despite failed fulfillment (uses_left = %d)", left)
		}
		if len(deps.cache.invalidated) != 0 {
			t.Error("cache invalidated despite failed fulfillment")
		}
		if len(deps.botSync.synced) != 0 {
			t.Error("bot sync dispatched despite failed fulfillment")
		}
	})

	t.Run("balance failure keeps intent paid and defers side effects", func(t *testing.T) {
		deps := newFulfillUCDeps()
		deps.users.balanceErr = errors.New("deadlock detected")
		deps.promos.put(&model.PromoCode{ID: "promo-3", Code: "EXTRA", Type: model.PromoTypePercent, Value: 5, UsesLeft: 1})
		deps.seedPendingIntent("i11", nil, strPtr("promo-3"), 5000, "RUB")
		uc := deps.build()

		res, err := uc.HandlePaid(ctx, "order-i11")
		if err != nil {
			t.Fatalf("credit failure must not bubble to the webhook: %v", err)
		}
		if res.Status != usecase.MarkPaidTransitioned {
			t.Fatalf("status = %v, want Transitioned", res.Status)
		}

		stored, err := deps.intents.FindByLookupKey(ctx, nil, "order-i11")
		if err != nil {
			t.Fatalf("intent lookup: %v", err)
		}
		if stored.Status != model.PaymentStatusPaid {
			t.Errorf("intent status = %s, the financial fact must stay paid", stored.Status)
		}
		if got := deps.users.balance("user-1"); got != 0 {
			t.Errorf("balance = %d, want 0 after failed credit", got)
		}
		if left := deps.promos.usesLeft("promo-3"); left != 1 {
			t.Errorf("promo consumed despite failed credit (uses_left = %d)", left)
		}
		if len(deps.cache.invalidated) != 0 {
			t.Error("cache invalidated despite failed credit")
		}
		if len(deps.botSync.synced) != 0 {
			t.Error("bot sync dispatched despite failed credit")
		}
	})

	t.Run("top-up credits the converted balance", func(t *testing.T) {
		deps := newFulfillUCDeps()
		// 100 stars at 1.7 RUB/star = 17000 kopecks.
		deps.seedPendingIntent("i8", nil, nil, 100, "XTR")
		uc := deps.build()

		if _, err := uc.HandlePaid(ctx, "order-i8"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got := deps.users.balance("user-1"); got != 17000 {
			t.Errorf("balance = %d kopecks, want 17000", got)
		}
	})

	t.Run("top-up with promo consumes it alongside the credit", func(t *testing.T) {
		deps := newFulfillUCDeps()
		deps.promos.put(&model.PromoCode{ID: "promo-2", Code: "BONUS", Type: model.PromoTypePercent, Value: 10, UsesLeft: 3})
		deps.seedPendingIntent("i10", nil, strPtr("promo-2"), 9000, "RUB")
		uc := deps.build()

		if _, err := uc.HandlePaid(ctx, "order-i10"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got := deps.users.balance("user-1"); got != 9000 {
			t.Errorf("balance = %d kopecks, want 9000", got)
		}
		if left := deps.promos.usesLeft("promo-2"); left != 2 {
			t.Errorf("uses_left = %d, want 2", left)
		}
	})

	t.Run("successful fulfillment invalidates cache and syncs the bot", func(t *testing.T) {
		deps := newFulfillUCDeps()
		deps.seedPendingIntent("i9", strPtr("tariff-1"), nil, 29900, "RUB")
		uc := deps.build()

		if _, err := uc.HandlePaid(ctx, "order-i9"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(deps.cache.invalidated) != 1 || deps.cache.invalidated[0] != "ext-1" {
			t.Errorf("cache invalidations = %v, want [ext-1]", deps.cache.invalidated)
		}
		if len(deps.botSync.synced) != 1 || deps.botSync.synced[0] != "ext-1" {
			t.Errorf("bot syncs = %v, want [ext-1]", deps.botSync.synced)
		}
	})
}
