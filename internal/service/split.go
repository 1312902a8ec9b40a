package service

import (
	"canteen/internal/model"

	"github.com/shopspring/decimal"
)

// OrderLine 拆分后每个用户每个商品的一行消费
type OrderLine struct {
	User     model.User
	Product  model.Product
	Quantity int
	Paid     decimal.Decimal
}

// CalculateSplit 把一次下单展开成 商品 × 用户 的消费行
//
// split=false 时每个用户都按完整数量和金额计费。
// split=true 时数量按人数整除（余数丢弃，这是已知的取整损失），
// 金额为 price*quantity/人数 向上取整到分。
// 商品或用户为空时返回空列表。
func CalculateSplit(products []model.Product, users []model.User, quantity int, split bool) []OrderLine {
	lines := make([]OrderLine, 0, len(products)*len(users))
	if len(products) == 0 || len(users) == 0 {
		return lines
	}

	count := int64(len(users))
	qty := decimal.NewFromInt(int64(quantity))

	for _, product := range products {
		total := product.Price.Mul(qty)

		lineQuantity := quantity
		linePaid := total
		if split {
			lineQuantity = quantity / len(users)
			linePaid = total.Div(decimal.NewFromInt(count)).RoundCeil(2)
		}

		for _, user := range users {
			lines = append(lines, OrderLine{
				User:     user,
				Product:  product,
				Quantity: lineQuantity,
				Paid:     linePaid,
			})
		}
	}
	return lines
}
