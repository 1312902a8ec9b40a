package service

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"canteen/internal/model"
)

var orderCSVHeader = []string{"id", "user_id", "product_id", "product_name", "quantity", "paid", "created_at"}

// WriteOrdersCSV 导出订单，没有订单时只输出表头
func WriteOrdersCSV(w io.Writer, orders []model.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(orderCSVHeader); err != nil {
		return err
	}

	for _, o := range orders {
		productID := ""
		if o.ProductID != nil {
			productID = strconv.FormatInt(*o.ProductID, 10)
		}
		record := []string{
			strconv.FormatInt(o.ID, 10),
			strconv.FormatInt(o.UserID, 10),
			productID,
			o.ProductName,
			strconv.Itoa(o.Quantity),
			o.Paid.StringFixed(2),
			o.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
