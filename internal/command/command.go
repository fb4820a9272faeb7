// Package command implements the bot's command surface independently of
// any messaging transport. Each command takes the caller's identity and
// arguments and returns the text reply to show. All failures are converted
// to user-visible messages at this boundary; none escape as errors.
package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cardshop-bot/internal/repository"
	"cardshop-bot/internal/service"
	"cardshop-bot/internal/session"

	"github.com/shopspring/decimal"
)

// Request carries the caller's identity and raw arguments.
type Request struct {
	UserID int64
	ChatID int64
	Args   []string
}

// Dispatcher routes commands to the shop and payments services.
type Dispatcher struct {
	shop     *service.Shop
	payments *service.Payments
	ledger   repository.LedgerRepository
	history  repository.HistoryRepository
	adminIDs map[int64]bool
}

// NewDispatcher creates the command dispatcher. adminIDs gates the
// privileged commands.
func NewDispatcher(
	shop *service.Shop,
	payments *service.Payments,
	ledger repository.LedgerRepository,
	history repository.HistoryRepository,
	adminIDs []int64,
) *Dispatcher {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Dispatcher{
		shop:     shop,
		payments: payments,
		ledger:   ledger,
		history:  history,
		adminIDs: admins,
	}
}

// Reload re-reads the catalog source and re-applies the sold set.
func (d *Dispatcher) Reload(ctx context.Context, req Request) string {
	if err := d.shop.Reload(ctx); err != nil {
		log.Printf("[Command] Reload failed: %v", err)
		return fmt.Sprintf("Erro ao recarregar catálogo: %v", err)
	}
	pairs := len(d.shop.Catalog().TypesSorted())
	return fmt.Sprintf("Catálogo recarregado. Tipos disponíveis: %d\nCódigos vendidos continuam indisponíveis.", pairs)
}

// Balance sets the caller's balance when an amount is given, otherwise it
// shows the current balance. Negative amounts are clamped to zero.
func (d *Dispatcher) Balance(ctx context.Context, req Request) string {
	if len(req.Args) == 0 {
		bal, err := d.ledger.Balance(ctx, req.UserID)
		if err != nil {
			log.Printf("[Command] Balance query failed for user %d: %v", req.UserID, err)
			return "Não foi possível consultar o saldo. Tente novamente."
		}
		return fmt.Sprintf("Saldo atual: %s", FormatBRL(bal))
	}

	val, err := decimal.NewFromString(strings.ReplaceAll(req.Args[0], ",", "."))
	if err != nil {
		return "Uso: /saldo 50"
	}
	if val.IsNegative() {
		val = decimal.Zero
	}
	if err := d.ledger.SetBalance(ctx, req.UserID, val); err != nil {
		log.Printf("[Command] SetBalance failed for user %d: %v", req.UserID, err)
		return "Não foi possível atualizar o saldo. Tente novamente."
	}
	return fmt.Sprintf("Saldo atualizado: %s", FormatBRL(val))
}

// Fund opens a PIX funding charge for the given amount.
func (d *Dispatcher) Fund(ctx context.Context, req Request) string {
	if len(req.Args) == 0 {
		return "Uso: /pix VALOR [descrição]\nExemplo: /pix 50"
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(req.Args[0], ",", "."))
	if err != nil {
		return "Valor inválido. Insira um número válido (ex: 10.50)."
	}

	description := ""
	if len(req.Args) > 1 {
		description = strings.Join(req.Args[1:], " ")
	}

	charge, err := d.payments.CreateFunding(ctx, req.UserID, amount, description)
	switch {
	case errors.Is(err, service.ErrAmountNotPositive):
		return "O valor deve ser maior que zero."
	case errors.Is(err, service.ErrAmountTooSmall):
		return "Valor mínimo: R$ 1,00"
	case errors.Is(err, service.ErrAmountTooLarge):
		return "Valor máximo: R$ 1.000,00"
	case err != nil:
		log.Printf("[Command] Funding failed for user %d: %v", req.UserID, err)
		return "Ocorreu um erro ao gerar o PIX. Tente novamente mais tarde."
	}

	return fmt.Sprintf(
		"PIX gerado com sucesso!\n\nValor: %s\nID: %s\nVálido por: 24 horas\n\nCódigo PIX (Copia e Cola):\n%s\n\nSeu saldo será creditado automaticamente.",
		FormatBRL(charge.Amount), charge.ID, charge.QRCode)
}

// SearchPrefix opens a filter session over codes starting with the given
// prefix and renders its first item.
func (d *Dispatcher) SearchPrefix(ctx context.Context, req Request) string {
	if len(req.Args) == 0 {
		return "Uso: /inicial 123456\nEnvie os primeiros dígitos do código para filtrar."
	}

	prefix := strings.TrimSpace(strings.Join(req.Args, ""))
	sess, err := d.shop.SearchPrefix(ctx, req.ChatID, prefix)
	if errors.Is(err, service.ErrNoResults) {
		return fmt.Sprintf("Não há itens com a inicial %s disponível.", prefix)
	}
	if err != nil {
		log.Printf("[Command] Prefix search failed: %v", err)
		return "Erro na busca. Tente novamente."
	}
	return d.renderSession(ctx, req.UserID, sess)
}

// SearchType opens a filter session over items of a type and renders its
// first item.
func (d *Dispatcher) SearchType(ctx context.Context, req Request) string {
	if len(req.Args) == 0 {
		names := make([]string, 0)
		for _, tp := range d.shop.Catalog().TypesSorted() {
			names = append(names, tp.Name)
		}
		listed := strings.Join(names, ", ")
		if listed == "" {
			listed = "-"
		}
		return fmt.Sprintf("Uso: /tipo NOME_DO_TIPO\nEx.: /tipo Beginner\n\nTipos disponíveis: %s", listed)
	}

	query := strings.TrimSpace(strings.Join(req.Args, " "))
	sess, err := d.shop.SearchType(ctx, req.ChatID, query)
	if errors.Is(err, service.ErrNoResults) {
		return fmt.Sprintf("Não há itens do tipo %s disponíveis.", query)
	}
	if err != nil {
		log.Printf("[Command] Type search failed: %v", err)
		return "Erro na busca. Tente novamente."
	}
	return d.renderSession(ctx, req.UserID, sess)
}

// Navigate moves a session cursor and renders the item it lands on.
func (d *Dispatcher) Navigate(ctx context.Context, req Request, sessionID int64, direction string) string {
	sess, err := d.shop.Advance(ctx, req.ChatID, sessionID, direction)
	if errors.Is(err, session.ErrSessionNotFound) {
		return "Filtro expirado. Abra novamente."
	}
	if err != nil {
		log.Printf("[Command] Navigation failed: %v", err)
		return "Erro na navegação. Tente novamente."
	}
	return d.renderSession(ctx, req.UserID, sess)
}

// Buy purchases the item under a session's cursor and reveals its full
// text.
func (d *Dispatcher) Buy(ctx context.Context, req Request, sessionID int64) string {
	p, balance, err := d.shop.PurchaseFromSession(ctx, req.UserID, req.ChatID, sessionID)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "Filtro expirado. Abra novamente."
	case errors.Is(err, repository.ErrInsufficientBalance):
		return "Saldo insuficiente. Adicione saldo."
	case errors.Is(err, service.ErrItemUnavailable):
		return "Este item não está mais disponível."
	case err != nil:
		log.Printf("[Command] Purchase failed for user %d: %v", req.UserID, err)
		return "Erro ao processar a compra. Tente novamente."
	}

	return fmt.Sprintf(
		"Compra realizada!\n\n%s\n\nPreço: %s\nSeu Saldo: %s\nHora da compra: %s",
		p.Raw, FormatBRL(p.PricePaid), FormatBRL(balance),
		p.PurchasedAt.Format("02/01/2006 15:04:05"))
}

// History renders the caller's purchase history, newest first.
func (d *Dispatcher) History(ctx context.Context, req Request) string {
	purchases, err := d.history.ListByUser(ctx, req.UserID)
	if err != nil {
		log.Printf("[Command] History query failed for user %d: %v", req.UserID, err)
		return "Não foi possível consultar o histórico. Tente novamente."
	}
	if len(purchases) == 0 {
		return "Nenhuma compra registrada."
	}

	var b strings.Builder
	b.WriteString("Histórico de compras\n")
	for i, p := range purchases {
		fmt.Fprintf(&b, "\n%d) %s - %s - %s\n", i+1, p.Code, FormatBRL(p.PricePaid),
			p.PurchasedAt.Format("02/01/2006 15:04:05"))
	}
	return b.String()
}

// Sold lists all sold codes grouped by type/subtype. Admin only.
func (d *Dispatcher) Sold(ctx context.Context, req Request) string {
	if !d.adminIDs[req.UserID] {
		return "Comando disponível apenas para administradores."
	}

	groups, err := d.shop.SoldReport(ctx)
	if err != nil {
		log.Printf("[Command] Sold report failed: %v", err)
		return "Não foi possível gerar o relatório. Tente novamente."
	}
	if len(groups) == 0 {
		return "Nenhum código foi vendido ainda."
	}

	var b strings.Builder
	b.WriteString("Códigos vendidos:\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "\n%s:\n", g.Key)
		for _, code := range g.Codes {
			fmt.Fprintf(&b, "- %s\n", code)
		}
	}
	return b.String()
}

// renderSession renders a session's current item with its code masked.
func (d *Dispatcher) renderSession(ctx context.Context, userID int64, sess *session.FilterSession) string {
	it := sess.Items[sess.Cursor]
	price := d.shop.ResolvePrice(it)

	balance, err := d.ledger.Balance(ctx, userID)
	if err != nil {
		log.Printf("[Command] Balance lookup failed for user %d: %v", userID, err)
		balance = decimal.Zero
	}

	return fmt.Sprintf(
		"%s [sessão %d]\nVisualizando %d de %d\n\n%s\n\nPreço: %s\nSeu Saldo: %s",
		sess.Title, sess.ID, sess.Cursor+1, len(sess.Items), maskedRaw(it),
		FormatBRL(price), FormatBRL(balance))
}
