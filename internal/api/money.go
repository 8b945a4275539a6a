package api

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// В JSON суммы передаются в основных единицах с двумя знаками после запятой.
const moneyExp = -2

var (
	minMinor = decimal.NewFromInt(math.MinInt64)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// MoneyFromMinor переводит минорные единицы в десятичную сумму.
func MoneyFromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, moneyExp)
}

// MoneyToMinor переводит десятичную сумму в минорные единицы.
// Дробная часть мельче копейки считается ошибкой, а не округляется.
func MoneyToMinor(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(-moneyExp)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s has more than %d fractional digits", domain.ErrValidation, amount, -moneyExp)
	}
	if shifted.LessThan(minMinor) || shifted.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: amount %s is out of range", domain.ErrValidation, amount)
	}
	return shifted.IntPart(), nil
}
