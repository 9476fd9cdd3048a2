package audit

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/roach88/ecomgen/internal/model"
)

// newRowValidator returns a validator that understands the row struct tags
// of package model, including the "money" tag: a non-negative amount with
// at most two decimals.
func newRowValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		return !d.IsNegative() && d.Equal(d.Round(2))
	})
	return v
}

// checkRowSchemas validates every row of every table against its struct tags.
func checkRowSchemas(r *Report, ds *model.Dataset) {
	v := newRowValidator()
	validateRows(r, v, model.TableCustomers, ds.Customers, func(c model.Customer) string { return c.CustomerID })
	validateRows(r, v, model.TableProducts, ds.Products, func(p model.Product) string { return p.ProductID })
	validateRows(r, v, model.TableCarts, ds.Carts, func(c model.ShoppingCart) string { return c.CartID })
	validateRows(r, v, model.TableCartItems, ds.CartItems, func(i model.CartItem) string { return i.CartItemID })
	validateRows(r, v, model.TableOrders, ds.Orders, func(o model.Order) string { return o.OrderID })
	validateRows(r, v, model.TableOrderItems, ds.OrderItems, func(i model.OrderItem) string { return i.OrderItemID })
	validateRows(r, v, model.TableReturns, ds.Returns, func(ret model.Return) string { return ret.ReturnID })
	validateRows(r, v, model.TableReturnItems, ds.ReturnItems, func(i model.ReturnItem) string { return i.ReturnItemID })
}

func validateRows[T any](r *Report, v *validator.Validate, table string, rows []T, id func(T) string) {
	var viol violations
	for _, row := range rows {
		err := v.Struct(row)
		if err == nil {
			continue
		}
		var fields validator.ValidationErrors
		if !errors.As(err, &fields) {
			viol.add("%s: %v", id(row), err)
			continue
		}
		for _, fe := range fields {
			viol.add("%s.%s fails %q", id(row), fe.Field(), fe.Tag())
		}
	}
	viol.report(r, "row_schema/"+table, fmt.Sprintf("%d rows valid", len(rows)))
}
