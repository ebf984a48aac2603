package dialogs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/bot/engine"
	"github.com/ogettransport/oget-bot/internal/sheets"
)

const deleteSlotPrefix = "delslot:"

// registerAdmin wires the gated admin menu and its flows: museum slot
// management, the booking list and the broadcast.
func (d Deps) registerAdmin(e *engine.Engine) {
	e.HandleCallback("adm:", func(c *engine.Ctx, data string) {
		if !d.Gate.IsAdmin(c.UserID) {
			c.Show(engine.View{
				Text:     "Цей розділ доступний лише адміністраторам.",
				Keyboard: homeOnly(),
			})
			return
		}
		switch data {
		case "adm:menu":
			c.Show(engine.View{
				Text: "Адміністрування:",
				Keyboard: withHome(bot.Keyboard{
					bot.Row("➕ Додати дату екскурсії", "adm:addslot"),
					bot.Row("➖ Видалити дату екскурсії", "adm:delslot"),
					bot.Row("📋 Останні бронювання", "adm:bookings"),
					bot.Row("📣 Розсилка новин", "adm:broadcast"),
				}),
			})
		case "adm:addslot":
			c.Start("admin_add_slot")
		case "adm:delslot":
			c.Start("admin_delete_slot")
		case "adm:broadcast":
			c.Start("broadcast")
		case "adm:bookings":
			c.Show(d.bookingListView(c))
		}
	})

	e.Register(d.addSlotScript())
	e.Register(d.deleteSlotScript())
	e.Register(d.broadcastScript())
}

func (d Deps) addSlotScript() *engine.Script {
	return &engine.Script{
		Name:  "admin_add_slot",
		Entry: "date",
		Steps: []*engine.Step{
			{
				ID:     "date",
				Expect: engine.ExpectText,
				Key:    "date",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Вкажіть нову дату екскурсії (ДД.ММ.РРРР ГГ:ХХ):",
						Keyboard: homeOnly(),
					}
				},
				Validate: validFutureDateTime(d.Now),
			},
		},
		OnComplete: func(c *engine.Ctx) engine.View {
			date := c.Payload["date"]
			if err := d.Sheets.Append(c.Context, sheets.SheetMuseumDates, []interface{}{date}); err != nil {
				d.Log.Error("Slot append failed", "date", date, "error", err)
				return engine.View{
					Text:     "Не вдалося додати дату. Спробуйте пізніше.",
					Keyboard: homeOnly(),
				}
			}
			d.Sheets.InvalidateMuseumDates()
			return engine.View{
				Text:     "Дату «" + date + "» додано до розкладу.",
				Keyboard: homeOnly(),
			}
		},
	}
}

func (d Deps) deleteSlotScript() *engine.Script {
	return &engine.Script{
		Name:  "admin_delete_slot",
		Entry: "pick",
		Steps: []*engine.Step{
			{
				ID:     "pick",
				Expect: engine.ExpectCallback,
				Key:    "row",
				Render: func(c *engine.Ctx) engine.View {
					slots, err := d.Sheets.MuseumDates(c.Context)
					if err != nil {
						d.Log.Error("Museum slot list unavailable", "error", err)
						return engine.View{
							Text:     "Не вдалося отримати розклад. Спробуйте пізніше.",
							Keyboard: homeOnly(),
						}
					}
					if len(slots) == 0 {
						return engine.View{
							Text:     "Розклад порожній, видаляти нічого.",
							Keyboard: homeOnly(),
						}
					}
					var kb bot.Keyboard
					for _, s := range slots {
						kb = append(kb, bot.Row("🗑 "+s.Value, deleteSlotPrefix+strconv.Itoa(s.Row)))
					}
					return engine.View{
						Text:     "Оберіть дату, яку треба видалити:",
						Keyboard: withHome(kb),
					}
				},
				Validate: func(input string) (string, error) {
					row := strings.TrimPrefix(input, deleteSlotPrefix)
					if _, err := strconv.Atoi(row); err != nil {
						return "", errors.New("Невідомий рядок розкладу.")
					}
					return row, nil
				},
			},
		},
		OnComplete: func(c *engine.Ctx) engine.View {
			cell := "A" + c.Payload["row"]
			if err := d.Sheets.ClearCell(c.Context, sheets.SheetMuseumDates, cell); err != nil {
				d.Log.Error("Slot clear failed", "cell", cell, "error", err)
				return engine.View{
					Text:     "Не вдалося видалити дату. Спробуйте пізніше.",
					Keyboard: homeOnly(),
				}
			}
			d.Sheets.InvalidateMuseumDates()
			return engine.View{Text: "Дату видалено з розкладу.", Keyboard: homeOnly()}
		},
	}
}

func (d Deps) broadcastScript() *engine.Script {
	return &engine.Script{
		Name:  "broadcast",
		Entry: "text",
		Steps: []*engine.Step{
			{
				ID:     "text",
				Expect: engine.ExpectText,
				Key:    "text",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Введіть текст розсилки:",
						Keyboard: homeOnly(),
					}
				},
				Validate: validNonEmpty("Текст розсилки не може бути порожнім."),
				Next:     gotoStep("confirm"),
			},
			{
				ID:     "confirm",
				Expect: engine.ExpectCallback,
				Key:    "confirm",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text: "Надіслати всім підписаним користувачам?\n\n" + c.Payload["text"],
						Keyboard: withHome(bot.Keyboard{
							bot.Row("✅ Надіслати", "yes"),
							bot.Row("❌ Скасувати", "no"),
						}),
					}
				},
			},
		},
		OnComplete: func(c *engine.Ctx) engine.View {
			if c.Payload["confirm"] != "yes" {
				return engine.View{Text: "Розсилку скасовано.", Keyboard: homeOnly()}
			}
			text := c.Payload["text"]
			reportTo := c.ChatID
			// The fan-out can take a while at the configured rate cap, so
			// it runs detached; the summary lands in the admin's chat.
			go d.Broadcaster.BroadcastAndReport(context.Background(), text, reportTo)
			return engine.View{Text: "Розсилку розпочато.", Keyboard: homeOnly()}
		},
	}
}

// bookingListView shows the museum admin the tail of the bookings
// sheet.
func (d Deps) bookingListView(c *engine.Ctx) engine.View {
	rows, err := d.Sheets.ReadRange(c.Context, sheets.SheetBookings, "A1:E1000")
	if err != nil {
		d.Log.Error("Booking list read failed", "error", err)
		return engine.View{
			Text:     "Не вдалося прочитати бронювання. Спробуйте пізніше.",
			Keyboard: homeOnly(),
		}
	}
	if len(rows) == 0 {
		return engine.View{Text: "Бронювань поки немає.", Keyboard: homeOnly()}
	}
	if len(rows) > 10 {
		rows = rows[len(rows)-10:]
	}

	var b strings.Builder
	b.WriteString("Останні бронювання:\n")
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, fmt.Sprint(cell))
		}
		b.WriteString("\n• " + strings.Join(cells, " | "))
	}
	return engine.View{Text: b.String(), Keyboard: homeOnly()}
}
