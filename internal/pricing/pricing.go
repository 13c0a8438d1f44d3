// Package pricing содержит расчёт сумм заказа, общий для клиента и сервера.
package pricing

import "github.com/shopspring/decimal"

// ShippingCost задаёт фиксированную стоимость доставки. Клиент показывает её, в сумму заказа на сервере она не входит.
var ShippingCost = decimal.NewFromInt(40)

// Line описывает цену за единицу и количество.
type Line struct {
	Price    float64
	Quantity int
}

// LineTotal возвращает стоимость строки.
func LineTotal(l Line) decimal.Decimal {
	return decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal возвращает сумму price × quantity по всем строкам.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTotal(l))
	}
	return sum
}

// WithShipping добавляет стоимость доставки к непустой сумме.
func WithShipping(subtotal decimal.Decimal, empty bool) decimal.Decimal {
	if empty {
		return subtotal
	}
	return subtotal.Add(ShippingCost)
}

// Float переводит сумму в float64, округляя до копеек.
func Float(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// ToCents переводит цену в целое число копеек.
func ToCents(price float64) int64 {
	return decimal.NewFromFloat(price).Shift(2).Round(0).IntPart()
}

// FromCents переводит копейки обратно в цену.
func FromCents(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}
