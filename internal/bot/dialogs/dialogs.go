// Package dialogs holds the conversation scripts and menu screens. The
// scripts are declarative step tables; all transport work is done by
// the engine, all persistence by the services injected through Deps.
package dialogs

import (
	"context"
	"time"

	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/bot/admin"
	"github.com/ogettransport/oget-bot/internal/bot/engine"
	"github.com/ogettransport/oget-bot/internal/cityapi"
	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/gtfsrealtime"
	"github.com/ogettransport/oget-bot/internal/gtfsstatic"
	"github.com/ogettransport/oget-bot/internal/metrics"
	"github.com/ogettransport/oget-bot/internal/sheets"
	"github.com/ogettransport/oget-bot/internal/stopmatch"
	"github.com/ogettransport/oget-bot/internal/storage"
	"github.com/ogettransport/oget-bot/internal/tickets"
)

// SheetService is the slice of the spreadsheet adapter the dialogs
// need.
type SheetService interface {
	Append(ctx context.Context, sheet string, row []interface{}) error
	ReadRange(ctx context.Context, sheet, cells string) ([][]interface{}, error)
	ClearCell(ctx context.Context, sheet, cellRef string) error
	MuseumDates(ctx context.Context) ([]sheets.DateSlot, error)
	InvalidateMuseumDates()
}

// Deps are the services the scripts draw on.
type Deps struct {
	Log         logger.Logger
	Static      *gtfsstatic.Provider
	Realtime    *gtfsrealtime.Poller
	Matcher     *stopmatch.Matcher
	City        *cityapi.Client
	Sheets      SheetService
	Store       *storage.Store
	Tickets     *tickets.Service
	Gate        *admin.Gate
	Broadcaster *admin.Broadcaster
	Notifier    *admin.Notifier
	Metrics     *metrics.Collector

	// Now is injectable for the date validators.
	Now func() time.Time
}

// Register wires the main menu, all scripts and all static callback
// routes into the engine.
func Register(e *engine.Engine, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}

	e.SetHome(d.homeView)
	e.SetStartHook(func(ctx context.Context, u *bot.User) {
		if u == nil {
			return
		}
		err := d.Store.UpsertUser(ctx, storage.User{
			TelegramID: u.ID,
			Username:   u.Username,
			FirstName:  u.FirstName,
		})
		if err != nil {
			d.Log.Error("User registration failed", "user_id", u.ID, "error", err)
		}
	})

	d.registerFeedback(e)
	d.registerMuseum(e)
	d.registerInfo(e)
	d.registerAdmin(e)
}

func (d Deps) homeView(c *engine.Ctx) engine.View {
	kb := bot.Keyboard{
		bot.Row("📝 Звернення до підприємства", "fb:menu"),
		bot.Row("♿ Низькопідлоговий транспорт", "acc:menu"),
		bot.Row("🚏 Прибуття на зупинку", "arr:start"),
		bot.Row("🏛 Екскурсія до музею", "museum:start"),
		bot.Row("🔔 Розсилка новин", "sub:menu"),
	}
	if d.Gate.IsAdmin(c.UserID) {
		kb = append(kb, bot.Row("⚙️ Адміністрування", "adm:menu"))
	}
	return engine.View{
		Text:     "Вітаємо! Це бот міського електротранспорту.\nОберіть розділ:",
		Keyboard: kb,
	}
}

// withHome appends the global main-menu row to a keyboard.
func withHome(kb bot.Keyboard) bot.Keyboard {
	return append(kb, bot.Row("⬅️ Головне меню", engine.HomeData))
}

// homeOnly is the keyboard for terminal screens.
func homeOnly() bot.Keyboard {
	return withHome(nil)
}
