// Package seed はバンドル済みシードデータ（SeedCatalog)の読み込みを提供する。
// アカウント・コーヒー・レシピ・アクティビティタイムライン・フォールバック通知を含む
// 読み取り専用のフィクスチャで、プロセス起動時に1回だけ読み込まれる。
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/brewlog/internal/model"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog は読み込み済みのシードデータを保持する。
// 読み込み後は一切変更されないため、ロックなしで並行読み取りできる。
type Catalog struct {
	accounts      []model.Account
	coffees       map[string]model.CoffeeItem
	timeline      []model.BrewEvent
	recipes       []model.Recipe
	notifications []model.Notification
	savedRefs     map[string][]model.SavedCoffeeRef
	followPolicy  FollowPolicy
}

// --- YAMLスキーマ ---

type catalogFile struct {
	FollowPolicy  string             `yaml:"follow_policy"`
	FollowEdges   []followEdgeYAML   `yaml:"follow_edges"`
	Accounts      []accountYAML      `yaml:"accounts"`
	Coffees       []coffeeYAML       `yaml:"coffees"`
	Timeline      []eventYAML        `yaml:"timeline"`
	Recipes       []recipeYAML       `yaml:"recipes"`
	Notifications []notificationYAML `yaml:"notifications"`
}

type accountYAML struct {
	ID           string               `yaml:"id"`
	DisplayName  string               `yaml:"display_name"`
	AvatarRef    string               `yaml:"avatar_ref"`
	EmailRef     string               `yaml:"email_ref"`
	SavedCoffees []savedCoffeeRefYAML `yaml:"saved_coffees"`
}

type coffeeYAML struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Roaster    string `yaml:"roaster"`
	ImageRef   string `yaml:"image_ref"`
	Origin     string `yaml:"origin"`
	Process    string `yaml:"process"`
	RoastLevel string `yaml:"roast_level"`
}

// savedCoffeeRefYAML はID参照とインライン定義の両形式を受け付ける。
// どちらの形式かは取り込み時に一度だけ判定し、タグ付きユニオンへ変換する。
type savedCoffeeRefYAML struct {
	ID   string      `yaml:"id"`
	Item *coffeeYAML `yaml:"item"`
}

type eventYAML struct {
	ID             string    `yaml:"id"`
	CoffeeID       string    `yaml:"coffee_id"`
	CoffeeName     string    `yaml:"coffee_name"`
	Roaster        string    `yaml:"roaster"`
	ImageRef       string    `yaml:"image_ref"`
	Rating         int       `yaml:"rating"`
	Timestamp      time.Time `yaml:"timestamp"`
	BrewingMethod  string    `yaml:"brewing_method"`
	GrindSize      string    `yaml:"grind_size"`
	Notes          string    `yaml:"notes"`
	OwnerAccountID string    `yaml:"owner_account_id"`
	Friends        []string  `yaml:"friends"`
}

type recipeYAML struct {
	ID              string  `yaml:"id"`
	CoffeeID        string  `yaml:"coffee_id"`
	Method          string  `yaml:"method"`
	CoffeeGrams     float64 `yaml:"coffee_grams"`
	WaterGrams      float64 `yaml:"water_grams"`
	WaterTempC      float64 `yaml:"water_temp_c"`
	GrindSize       string  `yaml:"grind_size"`
	BrewTimeSeconds int     `yaml:"brew_time_seconds"`
	CreatorID       string  `yaml:"creator_id"`
}

type notificationYAML struct {
	ID              string    `yaml:"id"`
	Type            string    `yaml:"type"`
	ActorID         string    `yaml:"actor_id"`
	ActorName       string    `yaml:"actor_name"`
	TargetAccountID string    `yaml:"target_account_id"`
	CreatedAt       time.Time `yaml:"created_at"`
	RecipeID        string    `yaml:"recipe_id"`
	Message         string    `yaml:"message"`
}

type followEdgeYAML struct {
	Follower  string `yaml:"follower"`
	Following string `yaml:"following"`
}

// Load は埋め込み済みYAMLからカタログを読み込む。
func Load() (*Catalog, error) {
	return parse(catalogYAML)
}

func parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("シードカタログの解析に失敗しました: %w", err)
	}

	c := &Catalog{
		coffees:   make(map[string]model.CoffeeItem, len(file.Coffees)),
		savedRefs: make(map[string][]model.SavedCoffeeRef, len(file.Accounts)),
	}

	for _, co := range file.Coffees {
		c.coffees[co.ID] = coffeeFromYAML(co)
	}

	for _, a := range file.Accounts {
		c.accounts = append(c.accounts, model.Account{
			ID:          a.ID,
			DisplayName: a.DisplayName,
			AvatarRef:   a.AvatarRef,
			EmailRef:    a.EmailRef,
		})
		for _, ref := range a.SavedCoffees {
			c.savedRefs[a.ID] = append(c.savedRefs[a.ID], savedRefFromYAML(ref))
		}
	}

	for _, e := range file.Timeline {
		c.timeline = append(c.timeline, model.BrewEvent{
			ID:             e.ID,
			CoffeeID:       e.CoffeeID,
			CoffeeName:     e.CoffeeName,
			Roaster:        e.Roaster,
			ImageRef:       e.ImageRef,
			Rating:         e.Rating,
			Timestamp:      e.Timestamp,
			BrewingMethod:  e.BrewingMethod,
			GrindSize:      e.GrindSize,
			Notes:          e.Notes,
			OwnerAccountID: e.OwnerAccountID,
			Friends:        e.Friends,
		})
	}

	for _, r := range file.Recipes {
		c.recipes = append(c.recipes, model.Recipe{
			ID:              r.ID,
			CoffeeID:        r.CoffeeID,
			Method:          r.Method,
			CoffeeGrams:     r.CoffeeGrams,
			WaterGrams:      r.WaterGrams,
			WaterTempC:      r.WaterTempC,
			GrindSize:       r.GrindSize,
			BrewTimeSeconds: r.BrewTimeSeconds,
			CreatorID:       r.CreatorID,
		})
	}

	for _, n := range file.Notifications {
		c.notifications = append(c.notifications, model.Notification{
			ID:              n.ID,
			Type:            model.NotificationType(n.Type),
			ActorID:         n.ActorID,
			ActorName:       n.ActorName,
			TargetAccountID: n.TargetAccountID,
			CreatedAt:       n.CreatedAt,
			Origin:          model.NotificationOriginSeed,
			Payload: model.NotificationPayload{
				RecipeID: n.RecipeID,
				Message:  n.Message,
			},
		})
	}

	policy, err := buildFollowPolicy(file.FollowPolicy, file.FollowEdges)
	if err != nil {
		return nil, err
	}
	c.followPolicy = policy

	return c, nil
}

func coffeeFromYAML(co coffeeYAML) model.CoffeeItem {
	return model.CoffeeItem{
		ID:         co.ID,
		Name:       co.Name,
		Roaster:    co.Roaster,
		ImageRef:   co.ImageRef,
		Origin:     co.Origin,
		Process:    co.Process,
		RoastLevel: co.RoastLevel,
	}
}

func savedRefFromYAML(ref savedCoffeeRefYAML) model.SavedCoffeeRef {
	if ref.Item != nil {
		item := coffeeFromYAML(*ref.Item)
		return model.SavedCoffeeRef{Kind: model.SavedCoffeeKindInline, Item: &item}
	}
	return model.SavedCoffeeRef{Kind: model.SavedCoffeeKindID, ID: ref.ID}
}

// --- 読み取り専用アクセサ ---
// いずれもコピーを返し、呼び出し側の変更がカタログに波及しないようにする。

// Accounts は登録済みアカウント一覧を返す。
func (c *Catalog) Accounts() []model.Account {
	out := make([]model.Account, len(c.accounts))
	copy(out, c.accounts)
	return out
}

// LookupCoffee は指定IDのコーヒーを返す。
func (c *Catalog) LookupCoffee(id string) (model.CoffeeItem, bool) {
	item, ok := c.coffees[id]
	return item, ok
}

// Timeline はバンドル済みアクティビティタイムラインを返す。
func (c *Catalog) Timeline() []model.BrewEvent {
	out := make([]model.BrewEvent, len(c.timeline))
	copy(out, c.timeline)
	return out
}

// Recipes は共有レシピプールの初期内容を返す。
func (c *Catalog) Recipes() []model.Recipe {
	out := make([]model.Recipe, len(c.recipes))
	copy(out, c.recipes)
	return out
}

// SavedCoffees は指定アカウントの保存済みコーヒーを正規化して返す。
// ID参照はカタログのコーヒー定義で解決し、解決できない参照は除外する。
func (c *Catalog) SavedCoffees(accountID string) []model.CoffeeItem {
	return model.ResolveSavedCoffeeRefs(c.savedRefs[accountID], c.LookupCoffee)
}

// FallbackNotifications は指定アカウント宛のフォールバック通知を返す。
// rate_recipe_reminder等の主要通知型は含まれない（ブレンド対象は副次型のみ）。
func (c *Catalog) FallbackNotifications(accountID string) []model.Notification {
	var out []model.Notification
	for _, n := range c.notifications {
		if n.TargetAccountID == accountID && n.Type != model.NotificationTypeRateRecipeReminder {
			out = append(out, n)
		}
	}
	return out
}

// FollowPolicy は設定済みのフォローポリシーを返す。
func (c *Catalog) FollowPolicy() FollowPolicy {
	return c.followPolicy
}
