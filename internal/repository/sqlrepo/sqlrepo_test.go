package sqlrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/wishlister/internal/models"
	"github.com/Kerhoff/wishlister/internal/repository"
	"github.com/Kerhoff/wishlister/internal/testutil"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	return testutil.SetupTestDB(t).DB
}

func mustUser(t *testing.T, repo repository.UserRepository, email string) *models.User {
	t.Helper()
	u, err := repo.Create(context.Background(), &models.User{Email: email, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func mustWishlist(t *testing.T, repo repository.WishlistRepository, owner *models.User, title, slug string) *models.Wishlist {
	t.Helper()
	wl, err := repo.Create(context.Background(), &models.Wishlist{OwnerID: owner.ID, Title: title, Slug: slug})
	if err != nil {
		t.Fatalf("create wishlist %s: %v", title, err)
	}
	return wl
}

func TestUserRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := mustUser(t, repo, " Alice@Example.com ")
	if u.ID == 0 || u.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", u)
	}

	got, err := repo.GetByEmail(ctx, "ALICE@example.com")
	if err != nil || got == nil || got.ID != u.ID {
		t.Fatalf("GetByEmail() = %+v, %v", got, err)
	}

	missing, err := repo.GetByID(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("GetByID(missing) = %+v, %v; want nil, nil", missing, err)
	}

	_, err = repo.Create(ctx, &models.User{Email: "alice@example.com", PasswordHash: "y"})
	if !repository.IsConflict(err, repository.ConstraintUserEmail) {
		t.Errorf("expected email conflict, got %v", err)
	}
}

func TestProfileRepository(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	u := mustUser(t, users, "bob@example.com")
	birth := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	p, err := repo.Create(ctx, &models.Profile{UserID: u.ID, DisplayName: "Bob", IsPublic: true, BirthDate: &birth})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	p.Bio = "Collects vinyl"
	p.ShowBirthDate = true
	if _, err := repo.Update(ctx, p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByUserID(ctx, u.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByUserID() = %v, %v", got, err)
	}
	if got.Bio != "Collects vinyl" || !got.ShowBirthDate || got.BirthDate == nil || !got.BirthDate.Equal(birth) {
		t.Errorf("unexpected profile %+v", got)
	}

	_, err = repo.Create(ctx, &models.Profile{UserID: u.ID})
	if !repository.IsConflict(err, repository.ConstraintProfileUser) {
		t.Errorf("expected profile conflict, got %v", err)
	}
}

func TestWishlistRepositoryConstraints(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewWishlistRepository(db)
	ctx := context.Background()

	owner := mustUser(t, users, "owner@example.com")
	other := mustUser(t, users, "other@example.com")
	mustWishlist(t, repo, owner, "Gifts", "gifts")

	tests := []struct {
		name       string
		wl         *models.Wishlist
		constraint string
	}{
		{"same owner and title", &models.Wishlist{OwnerID: owner.ID, Title: "Gifts", Slug: "gifts-2"}, repository.ConstraintWishlistTitle},
		{"same slug", &models.Wishlist{OwnerID: other.ID, Title: "Gifts", Slug: "gifts"}, repository.ConstraintWishlistSlug},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.Create(ctx, tc.wl)
			if !errors.Is(err, repository.ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}
			if !repository.IsConflict(err, tc.constraint) {
				t.Errorf("expected constraint %s, got %v", tc.constraint, err)
			}
		})
	}

	// another owner may reuse the title
	if _, err := repo.Create(ctx, &models.Wishlist{OwnerID: other.ID, Title: "Gifts", Slug: "gifts-other"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWishlistRepositoryShareToken(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewWishlistRepository(db)
	ctx := context.Background()

	owner := mustUser(t, users, "owner@example.com")
	a := mustWishlist(t, repo, owner, "A", "a")
	b := mustWishlist(t, repo, owner, "B", "b")

	token := "tok-aaaaaaaaaaaaaaaaaa"
	if err := repo.SetShareToken(ctx, a.ID, &token); err != nil {
		t.Fatalf("SetShareToken() error = %v", err)
	}
	got, err := repo.GetByShareToken(ctx, token)
	if err != nil || got == nil || got.ID != a.ID {
		t.Fatalf("GetByShareToken() = %+v, %v", got, err)
	}

	err = repo.SetShareToken(ctx, b.ID, &token)
	if !repository.IsConflict(err, repository.ConstraintWishlistToken) {
		t.Errorf("expected token conflict, got %v", err)
	}

	// two lists without a token do not collide
	if err := repo.SetShareToken(ctx, a.ID, nil); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	if got, _ := repo.GetByShareToken(ctx, token); got != nil {
		t.Error("revoked token still resolves")
	}
}

func TestWishlistRepositoryListByOwner(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewWishlistRepository(db)
	ctx := context.Background()

	owner := mustUser(t, users, "owner@example.com")
	for _, title := range []string{"Books", "Games", "Board games", "Kitchen"} {
		mustWishlist(t, repo, owner, title, "s-"+title)
	}

	lists, total, err := repo.ListByOwner(ctx, owner.ID, repository.WishlistFilters{Query: "GAME", Sort: "title"})
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if total != 2 || len(lists) != 2 || lists[0].Title != "Board games" || lists[1].Title != "Games" {
		t.Errorf("unexpected result total=%d lists=%v", total, titles(lists))
	}

	lists, total, err = repo.ListByOwner(ctx, owner.ID, repository.WishlistFilters{Sort: "-title", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if total != 4 || len(lists) != 2 || lists[0].Title != "Books" || lists[1].Title != "Board games" {
		t.Errorf("unexpected page total=%d lists=%v", total, titles(lists))
	}
}

func titles(lists []*models.Wishlist) []string {
	out := make([]string, len(lists))
	for i, l := range lists {
		out[i] = l.Title
	}
	return out
}

func TestWishlistRepositoryViewsAndUpdate(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewWishlistRepository(db)
	ctx := context.Background()

	owner := mustUser(t, users, "owner@example.com")
	wl := mustWishlist(t, repo, owner, "Gifts", "gifts")

	now := time.Now()
	if err := repo.RecordView(ctx, wl.ID, now); err != nil {
		t.Fatal(err)
	}
	if err := repo.RecordView(ctx, wl.ID, now); err != nil {
		t.Fatal(err)
	}

	wl.Title = "Presents"
	wl.IsPublic = true
	if _, err := repo.Update(ctx, wl); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetBySlug(ctx, "gifts")
	if err != nil || got == nil {
		t.Fatalf("GetBySlug() = %v, %v", got, err)
	}
	if got.ViewCount != 2 || got.LastViewedAt == nil {
		t.Errorf("views not recorded: %+v", got)
	}
	if got.Title != "Presents" || !got.IsPublic {
		t.Errorf("update not persisted: %+v", got)
	}

	public, err := repo.ListPublic(ctx)
	if err != nil || len(public) != 1 {
		t.Errorf("ListPublic() = %v, %v", titles(public), err)
	}

	exists, err := repo.SlugExists(ctx, "gifts")
	if err != nil || !exists {
		t.Errorf("SlugExists() = %v, %v", exists, err)
	}
}

func TestItemRepository(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	lists := NewWishlistRepository(db)
	repo := NewItemRepository(db)
	ctx := context.Background()

	owner := mustUser(t, users, "owner@example.com")
	wl := mustWishlist(t, lists, owner, "Gifts", "gifts")
	other := mustWishlist(t, lists, owner, "Other", "other")

	amount := "12.50"
	item, err := repo.Create(ctx, &models.Item{
		WishlistID: wl.ID, CreatedByID: &owner.ID, Title: "Book", Slug: "book",
		URL: "https://shop.example/book", PriceCurrency: "EUR", PriceAmount: &amount,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = repo.Create(ctx, &models.Item{WishlistID: wl.ID, Title: "Book", Slug: "book"})
	if !repository.IsConflict(err, repository.ConstraintItemSlug) {
		t.Errorf("expected item slug conflict, got %v", err)
	}

	// slugs are scoped per wishlist
	if _, err := repo.Create(ctx, &models.Item{WishlistID: other.ID, Title: "Book", Slug: "book"}); err != nil {
		t.Errorf("unexpected error in other wishlist: %v", err)
	}
	if _, err := repo.Create(ctx, &models.Item{WishlistID: wl.ID, Title: "Book two", Slug: "book-2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Create(ctx, &models.Item{WishlistID: wl.ID, Title: "Bookshelf", Slug: "bookshelf"}); err != nil {
		t.Fatal(err)
	}

	slugs, err := repo.SlugsWithPrefix(ctx, wl.ID, "book")
	if err != nil {
		t.Fatal(err)
	}
	if len(slugs) != 2 || !slugs["book"] || !slugs["book-2"] {
		t.Errorf("SlugsWithPrefix() = %v", slugs)
	}

	urls, err := repo.URLs(ctx, wl.ID)
	if err != nil || len(urls) != 1 || !urls["https://shop.example/book"] {
		t.Errorf("URLs() = %v, %v", urls, err)
	}

	item.IsPurchased = true
	if _, err := repo.Update(ctx, item); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetBySlug(ctx, wl.ID, "book")
	if err != nil || got == nil || !got.IsPurchased || got.PriceAmount == nil || *got.PriceAmount != "12.50" {
		t.Errorf("GetBySlug() = %+v, %v", got, err)
	}

	if err := repo.Delete(ctx, item.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := repo.GetBySlug(ctx, wl.ID, "book"); got != nil {
		t.Error("item still present after delete")
	}
}

func TestItemRepositoryMissingSlugs(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	lists := NewWishlistRepository(db)
	repo := NewItemRepository(db)
	ctx := context.Background()

	owner := mustUser(t, users, "owner@example.com")
	wl := mustWishlist(t, lists, owner, "Gifts", "gifts")

	// several unslugged items may coexist
	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, &models.Item{WishlistID: wl.ID, Title: "Lamp"}); err != nil {
			t.Fatalf("create unslugged item: %v", err)
		}
	}

	missing, err := repo.ListMissingSlugs(ctx)
	if err != nil || len(missing) != 3 {
		t.Fatalf("ListMissingSlugs() = %d, %v", len(missing), err)
	}
	if err := repo.UpdateSlug(ctx, missing[0].ID, "lamp"); err != nil {
		t.Fatal(err)
	}
	err = repo.UpdateSlug(ctx, missing[1].ID, "lamp")
	if !repository.IsConflict(err, repository.ConstraintItemSlug) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestAccessRepository(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	lists := NewWishlistRepository(db)
	repo := NewAccessRepository(db)
	ctx := context.Background()

	owner := mustUser(t, users, "owner@example.com")
	bob := mustUser(t, users, "bob@example.com")
	wl := mustWishlist(t, lists, owner, "Gifts", "gifts")

	first, err := repo.Upsert(ctx, &models.WishlistAccess{WishlistID: wl.ID, UserID: bob.ID, Role: models.AccessRoleView})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	second, err := repo.Upsert(ctx, &models.WishlistAccess{WishlistID: wl.ID, UserID: bob.ID, Role: models.AccessRoleEdit})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if second.ID != first.ID || second.Role != models.AccessRoleEdit {
		t.Errorf("upsert should update in place: first=%+v second=%+v", first, second)
	}

	grants, err := repo.ListByWishlist(ctx, wl.ID)
	if err != nil || len(grants) != 1 || grants[0].User == nil || grants[0].User.Email != "bob@example.com" {
		t.Fatalf("ListByWishlist() = %+v, %v", grants, err)
	}

	shared, err := lists.ListShared(ctx, bob.ID)
	if err != nil || len(shared) != 1 || shared[0].ID != wl.ID {
		t.Errorf("ListShared() = %v, %v", titles(shared), err)
	}

	if err := repo.Delete(ctx, wl.ID, bob.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := repo.GetByWishlistAndUser(ctx, wl.ID, bob.ID); got != nil {
		t.Error("grant still present after delete")
	}
}

func TestWishlistDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	lists := NewWishlistRepository(db)
	items := NewItemRepository(db)
	access := NewAccessRepository(db)
	ctx := context.Background()

	owner := mustUser(t, users, "owner@example.com")
	bob := mustUser(t, users, "bob@example.com")
	wl := mustWishlist(t, lists, owner, "Gifts", "gifts")
	if _, err := items.Create(ctx, &models.Item{WishlistID: wl.ID, Title: "Book", Slug: "book"}); err != nil {
		t.Fatal(err)
	}
	if _, err := access.Upsert(ctx, &models.WishlistAccess{WishlistID: wl.ID, UserID: bob.ID, Role: models.AccessRoleView}); err != nil {
		t.Fatal(err)
	}

	if err := lists.Delete(ctx, wl.ID); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM items`); err != nil || n != 0 {
		t.Errorf("items left after cascade: %d, %v", n, err)
	}
	if err := db.Get(&n, `SELECT COUNT(*) FROM wishlist_access`); err != nil || n != 0 {
		t.Errorf("grants left after cascade: %d, %v", n, err)
	}
}
