package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/mmeshcher/food-ordering-system/internal/apperr"
	"github.com/mmeshcher/food-ordering-system/internal/menu"
	"github.com/mmeshcher/food-ordering-system/internal/model"
	"github.com/mmeshcher/food-ordering-system/internal/session"
)

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout()
	case "whoami":
		return a.whoami()
	case "menu":
		return a.showMenu(ctx, args)
	case "add":
		return a.add(ctx, args)
	case "qty":
		return a.setQuantity(ctx, args)
	case "remove":
		return a.remove(ctx, args)
	case "cart":
		a.printCart()
		return nil
	case "clear":
		return a.cart.Clear(ctx)
	case "checkout":
		return a.checkout(ctx)
	case "orders":
		return a.listOrders(ctx)
	case "toggle":
		return a.toggle(ctx, args)
	case "status":
		return a.setStatus(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	}
	return apperr.Validationf("unknown command %q\n%s", cmd, usage)
}

func positional(args []string, n int, names ...string) ([]string, error) {
	if len(args) != n {
		return nil, apperr.Validationf("expected arguments: %v", names)
	}
	return args, nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	role := fs.String("role", "", "role: admin, manager or user")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.api.Register(ctx, *username, *password, model.Role(*role))
	if err != nil {
		return err
	}
	return a.startSession(res)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.api.Login(ctx, *username, *password)
	if err != nil {
		return err
	}
	return a.startSession(res)
}

func (a *app) startSession(res *model.AuthResult) error {
	if err := a.sessions.Set(session.FromAuthResult(res)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s (%s)\n", res.Message, res.User.Username, res.User.Role)
	return nil
}

func (a *app) logout() error {
	if err := a.sessions.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *app) whoami() error {
	sess, ok := a.sessions.Current()
	if !ok {
		return session.ErrNoSession
	}
	fmt.Fprintf(a.out, "%s (%s)\n", sess.Username, sess.Role)
	return nil
}

func (a *app) showMenu(ctx context.Context, args []string) error {
	f := menu.DefaultFilters()

	fs := flag.NewFlagSet("menu", flag.ContinueOnError)
	fs.StringVar(&f.Category, "category", f.Category, "category or all")
	sortBy := fs.String("sort", string(f.SortBy), "sort field: name or price")
	fs.StringVar(&f.Order, "order", f.Order, "asc or desc")
	fs.StringVar(&f.Search, "search", "", "name substring")
	fs.IntVar(&f.Page, "page", f.Page, "page number")
	fs.IntVar(&f.Limit, "limit", f.Limit, "items per page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	f.SortBy = model.SortField(*sortBy)

	page := a.menu.Query(ctx, f)
	printMenu(a.out, page)

	if clamped := menu.ClampPage(f.Page, page.Pagination.TotalPages); clamped != f.Page && page.Pagination.TotalPages > 0 {
		fmt.Fprintf(a.out, "page %d is out of range, try -page %d\n", f.Page, clamped)
	}
	return nil
}

func printMenu(out io.Writer, page model.MenuPage) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tAVAILABLE")
	for _, it := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%t\n", it.ID, it.Name, it.Category, it.Price, it.Availability)
	}
	_ = tw.Flush()

	p := page.Pagination
	fmt.Fprintf(out, "page %d of %d (%d items)\n", p.CurrentPage, p.TotalPages, p.TotalItems)
}

func (a *app) add(ctx context.Context, args []string) error {
	args, err := positional(args, 1, "ITEM_ID")
	if err != nil {
		return err
	}

	item, err := a.api.GetMenuItem(ctx, args[0])
	if err != nil {
		return err
	}
	if !item.Availability {
		return apperr.Conflictf("%s is not available", item.Name)
	}
	if err := a.cart.Add(ctx, *item); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added %s, cart has %d item(s)\n", item.Name, a.cart.Count())
	return nil
}

func (a *app) setQuantity(ctx context.Context, args []string) error {
	args, err := positional(args, 2, "ITEM_ID", "QUANTITY")
	if err != nil {
		return err
	}
	q, err := strconv.Atoi(args[1])
	if err != nil {
		return apperr.Validationf("quantity must be a number")
	}
	if err := a.cart.SetQuantity(ctx, args[0], q); err != nil {
		return err
	}
	a.printCart()
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	args, err := positional(args, 1, "ITEM_ID")
	if err != nil {
		return err
	}
	if err := a.cart.Remove(ctx, args[0]); err != nil {
		return err
	}
	a.printCart()
	return nil
}

func (a *app) printCart() {
	if a.cart.IsEmpty() {
		fmt.Fprintln(a.out, "cart is empty")
		return
	}
	lines := a.cart.Lines()

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tQTY")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\n", l.ItemID, l.Name, l.Price, l.Quantity)
	}
	_ = tw.Flush()

	fmt.Fprintf(a.out, "items: %d  subtotal: %.2f  total with delivery: %.2f\n",
		a.cart.Count(), a.cart.Subtotal(), a.cart.Total())
}

func (a *app) checkout(ctx context.Context) error {
	o, err := a.orders.PlaceOrder(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "order %s placed, total %.2f, status %s\n", o.ID, o.TotalAmount, o.Status)
	return nil
}

func (a *app) listOrders(ctx context.Context) error {
	if err := a.orders.RefreshOrders(ctx); err != nil {
		return err
	}
	printOrders(a.out, a.orders.Orders())
	return nil
}

func printOrders(out io.Writer, orders []model.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(out, "no orders yet")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOWNER\tITEMS\tTOTAL\tSTATUS\tCREATED")
	for _, o := range orders {
		owner := "-"
		if o.User != nil {
			owner = o.User.Username
		}
		count := 0
		for _, it := range o.Items {
			count += it.Quantity
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\t%s\n",
			o.ID, owner, count, o.TotalAmount, o.Status, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func (a *app) toggle(ctx context.Context, args []string) error {
	args, err := positional(args, 1, "ORDER_ID")
	if err != nil {
		return err
	}
	o, err := a.orders.ToggleStatus(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "order %s is now %s\n", o.ID, o.Status)
	return nil
}

func (a *app) setStatus(ctx context.Context, args []string) error {
	args, err := positional(args, 2, "ORDER_ID", "STATUS")
	if err != nil {
		return err
	}
	o, err := a.orders.SetStatus(ctx, args[0], model.OrderStatus(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "order %s is now %s\n", o.ID, o.Status)
	return nil
}
