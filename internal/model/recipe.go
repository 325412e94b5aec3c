package model

// Recipe は共有レシピプール内の1レシピを表す。
// IsSavedは「閲覧中アカウントが保存済みか」を示す派生フラグであり、
// レシピ固有の属性ではない。アカウント切り替えのたびに再計算される。
type Recipe struct {
	ID              string
	CoffeeID        string
	Method          string
	CoffeeGrams     float64
	WaterGrams      float64
	WaterTempC      float64
	GrindSize       string
	BrewTimeSeconds int
	CreatorID       string
	IsSaved         bool
}
