package dialogs

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/bot/engine"
	"github.com/ogettransport/oget-bot/internal/sheets"
	"github.com/ogettransport/oget-bot/internal/storage"
)

const slotPrefix = "slot:"

// registerMuseum wires the excursion booking script.
func (d Deps) registerMuseum(e *engine.Engine) {
	e.HandleCallback("museum:", func(c *engine.Ctx, data string) {
		c.Start("museum_booking")
	})
	e.Register(d.museumBookingScript())
}

func (d Deps) museumBookingScript() *engine.Script {
	return &engine.Script{
		Name:  "museum_booking",
		Entry: "slot",
		Steps: []*engine.Step{
			{
				ID:     "slot",
				Expect: engine.ExpectCallback,
				Key:    "slot",
				Render: func(c *engine.Ctx) engine.View {
					slots, err := d.Sheets.MuseumDates(c.Context)
					if err != nil {
						d.Log.Error("Museum slot list unavailable", "error", err)
						return engine.View{
							Text:     "Не вдалося отримати розклад екскурсій. Спробуйте пізніше.",
							Keyboard: homeOnly(),
						}
					}
					if len(slots) == 0 {
						return engine.View{
							Text:     "Наразі немає доступних дат екскурсій.",
							Keyboard: homeOnly(),
						}
					}
					var kb bot.Keyboard
					for _, s := range slots {
						kb = append(kb, bot.Row(s.Value, slotPrefix+s.Value))
					}
					return engine.View{
						Text:     "Оберіть дату екскурсії до музею електротранспорту:",
						Keyboard: withHome(kb),
					}
				},
				Validate: func(input string) (string, error) {
					// Stale callbacks from other menus must not land here
					// as a booking date, so the value is checked against
					// the current schedule.
					v := strings.TrimPrefix(input, slotPrefix)
					slots, err := d.Sheets.MuseumDates(context.Background())
					if err != nil {
						return "", errors.New("Не вдалося перевірити дату. Спробуйте ще раз.")
					}
					for _, s := range slots {
						if s.Value == v {
							return v, nil
						}
					}
					return "", errors.New("Такої дати немає в розкладі. Оберіть дату зі списку.")
				},
				Next: gotoStep("size"),
			},
			{
				ID:     "size",
				Expect: engine.ExpectText,
				Key:    "size",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Скільки осіб прийде? (від 2 до 10)",
						Keyboard: homeOnly(),
					}
				},
				Validate: validPartySize,
				Next:     gotoStep("contact"),
			},
			{
				ID:     "contact",
				Expect: engine.ExpectText,
				Key:    "contact",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Залиште ім'я та телефон через кому:",
						Keyboard: homeOnly(),
					}
				},
				Validate: validContact,
			},
		},
		OnComplete: d.completeBooking,
	}
}

func (d Deps) completeBooking(c *engine.Ctx) engine.View {
	name, phone := splitContact(c.Payload["contact"])
	size, _ := strconv.Atoi(c.Payload["size"])

	booking := storage.Booking{
		ExcursionDate: c.Payload["slot"],
		PeopleCount:   size,
		UserName:      name,
		UserPhone:     phone,
	}
	id, err := d.Store.InsertBooking(c.Context, booking)
	if err != nil {
		d.Log.Error("Booking insert failed", "user_id", c.UserID, "error", err)
		return engine.View{
			Text:     "Вибачте, сталася помилка. Спробуйте пізніше.",
			Keyboard: homeOnly(),
		}
	}
	booking.ID = id
	d.Metrics.BookingsCreated.Inc()

	row := []interface{}{
		booking.ExcursionDate,
		booking.PeopleCount,
		booking.UserName,
		booking.UserPhone,
		time.Now().Format("02.01.2006 15:04"),
	}
	if err := d.Sheets.Append(c.Context, sheets.SheetBookings, row); err != nil {
		// Stays pending; the resync hook can push it later.
		d.Log.Warn("Booking sheet append failed", "booking_id", id, "error", err)
	} else if err := d.Store.MarkBookingSynced(c.Context, id); err != nil {
		d.Log.Warn("Booking sync mark failed", "booking_id", id, "error", err)
	}

	d.Notifier.NotifyBooking(c.Context, booking)

	return engine.View{
		Text: "Бронювання прийнято!\nДата: " + booking.ExcursionDate +
			"\nКількість осіб: " + c.Payload["size"] +
			"\nМи зателефонуємо для підтвердження.",
		Keyboard: homeOnly(),
	}
}
