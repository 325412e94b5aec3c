package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/brewlog/internal/model"
)

// PostgresRecipeRepo はPostgreSQLを使用した共有レシピプールリポジトリ。
type PostgresRecipeRepo struct {
	db *sql.DB
}

// NewPostgresRecipeRepo はPostgresRecipeRepoを生成する。
func NewPostgresRecipeRepo(db *sql.DB) *PostgresRecipeRepo {
	return &PostgresRecipeRepo{db: db}
}

// ListAll は共有レシピプールの全レシピを取得する。
// IsSavedは閲覧アカウント依存の派生フラグのため永続化されず、常にfalseで返る。
func (r *PostgresRecipeRepo) ListAll(ctx context.Context) ([]model.Recipe, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, coffee_id, method, coffee_grams, water_grams, water_temp_c,
		        grind_size, brew_time_seconds, creator_id
		 FROM recipes ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("レシピ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var recipes []model.Recipe
	for rows.Next() {
		var rec model.Recipe
		if err := rows.Scan(
			&rec.ID, &rec.CoffeeID, &rec.Method,
			&rec.CoffeeGrams, &rec.WaterGrams, &rec.WaterTempC,
			&rec.GrindSize, &rec.BrewTimeSeconds, &rec.CreatorID,
		); err != nil {
			return nil, fmt.Errorf("レシピ行の読み取りに失敗しました: %w", err)
		}
		recipes = append(recipes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レシピ一覧の走査に失敗しました: %w", err)
	}
	return recipes, nil
}

// Upsert はレシピを保存する。既存IDは置き換える。
func (r *PostgresRecipeRepo) Upsert(ctx context.Context, recipe *model.Recipe) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recipes
		     (id, coffee_id, method, coffee_grams, water_grams, water_temp_c,
		      grind_size, brew_time_seconds, creator_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		     coffee_id = EXCLUDED.coffee_id,
		     method = EXCLUDED.method,
		     coffee_grams = EXCLUDED.coffee_grams,
		     water_grams = EXCLUDED.water_grams,
		     water_temp_c = EXCLUDED.water_temp_c,
		     grind_size = EXCLUDED.grind_size,
		     brew_time_seconds = EXCLUDED.brew_time_seconds,
		     creator_id = EXCLUDED.creator_id`,
		recipe.ID, recipe.CoffeeID, recipe.Method,
		recipe.CoffeeGrams, recipe.WaterGrams, recipe.WaterTempC,
		recipe.GrindSize, recipe.BrewTimeSeconds, recipe.CreatorID,
	)
	if err != nil {
		return fmt.Errorf("レシピの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RecipeRepository = (*PostgresRecipeRepo)(nil)
