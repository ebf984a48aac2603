package dialogs

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/bot/engine"
	"github.com/ogettransport/oget-bot/internal/cityapi"
	"github.com/ogettransport/oget-bot/internal/gtfsrealtime"
	"github.com/ogettransport/oget-bot/internal/stopmatch"
	"github.com/ogettransport/oget-bot/pkg/gtfs/models"
)

// registerInfo wires the read-only screens: accessible vehicles,
// arrivals near a shared location, and the subscription prompt.
func (d Deps) registerInfo(e *engine.Engine) {
	e.HandleCallback("acc:", d.handleAccessible)
	e.HandleCallback("sub:", d.handleSubscription)
	e.HandleCallback("arr:", func(c *engine.Ctx, data string) {
		c.Start("arrivals")
	})
	e.Register(d.arrivalsScript())
}

func (d Deps) handleAccessible(c *engine.Ctx, data string) {
	switch {
	case data == "acc:menu":
		c.Show(engine.View{
			Text: "Низькопідлоговий транспорт зараз на лінії.\nОберіть вид:",
			Keyboard: withHome(bot.Keyboard{
				bot.Row("🚋 Трамваї", "acc:kind:tram"),
				bot.Row("🚎 Тролейбуси", "acc:kind:trolley"),
			}),
		})

	case data == "acc:kind:tram" || data == "acc:kind:trolley":
		kind := models.RouteKindTram
		if data == "acc:kind:trolley" {
			kind = models.RouteKindTrolleybus
		}
		snap := d.Static.Snapshot()
		if snap == nil {
			c.Show(engine.View{
				Text:     "Дані маршрутів ще завантажуються. Спробуйте за хвилину.",
				Keyboard: homeOnly(),
			})
			return
		}
		names := snap.RouteNamesByKind(kind)
		if len(names) == 0 {
			c.Show(engine.View{Text: "Маршрутів не знайдено.", Keyboard: homeOnly()})
			return
		}
		var kb bot.Keyboard
		var row []bot.Button
		for _, name := range names {
			row = append(row, bot.Button{Text: name, Data: "acc:route:" + name})
			if len(row) == 4 {
				kb = append(kb, row)
				row = nil
			}
		}
		if len(row) > 0 {
			kb = append(kb, row)
		}
		c.Show(engine.View{Text: "Оберіть маршрут:", Keyboard: withHome(kb)})

	case strings.HasPrefix(data, "acc:route:"):
		c.Show(d.accessibleOnRouteView(strings.TrimPrefix(data, "acc:route:")))
	}
}

func (d Deps) accessibleOnRouteView(shortName string) engine.View {
	snap := d.Static.Snapshot()
	if snap == nil {
		return engine.View{
			Text:     "Дані маршрутів ще завантажуються. Спробуйте за хвилину.",
			Keyboard: homeOnly(),
		}
	}

	var vehicles []gtfsrealtime.VehicleInfo
	for _, routeID := range snap.RouteIDsByShortName(shortName) {
		vehicles = append(vehicles, d.Realtime.AccessibleOnRoute(routeID)...)
	}
	if len(vehicles) == 0 {
		return engine.View{
			Text:     fmt.Sprintf("На маршруті %s зараз немає низькопідлогових одиниць.", shortName),
			Keyboard: homeOnly(),
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "♿ Маршрут %s, на лінії:\n", shortName)
	for _, v := range vehicles {
		fmt.Fprintf(&b, "\n• Борт %s", v.Label)
		if v.NearestStop != "" {
			fmt.Fprintf(&b, " — біля зупинки «%s»", v.NearestStop)
		}
	}
	if at := d.Realtime.LastPollAt(); !at.IsZero() {
		fmt.Fprintf(&b, "\n\nОновлено: %s", at.Format("15:04:05"))
	}
	return engine.View{Text: b.String(), Keyboard: homeOnly()}
}

func (d Deps) handleSubscription(c *engine.Ctx, data string) {
	switch data {
	case "sub:menu":
		c.Show(engine.View{
			Text: "Бажаєте отримувати новини підприємства?",
			Keyboard: withHome(bot.Keyboard{
				bot.Row("Так, підписатися", "sub:yes"),
				bot.Row("Ні, відписатися", "sub:no"),
			}),
		})
	case "sub:yes", "sub:no":
		subscribe := data == "sub:yes"
		if err := d.Store.SetSubscribed(c.Context, c.UserID, subscribe); err != nil {
			d.Log.Error("Subscription update failed", "user_id", c.UserID, "error", err)
			c.Show(engine.View{
				Text:     "Вибачте, сталася помилка. Спробуйте пізніше.",
				Keyboard: homeOnly(),
			})
			return
		}
		text := "Ви відписалися від розсилки."
		if subscribe {
			text = "Ви підписані на новини підприємства."
		}
		c.Show(engine.View{Text: text, Keyboard: homeOnly()})
	}
}

func (d Deps) arrivalsScript() *engine.Script {
	return &engine.Script{
		Name:  "arrivals",
		Entry: "location",
		Steps: []*engine.Step{
			{
				ID:     "location",
				Expect: engine.ExpectLocation,
				Key:    "loc",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Надішліть вашу геолокацію, і я покажу найближчі зупинки.",
						Keyboard: homeOnly(),
					}
				},
				Next: gotoStep("stop"),
			},
			{
				ID:     "stop",
				Expect: engine.ExpectCallback,
				Key:    "stop",
				Render: func(c *engine.Ctx) engine.View {
					lat, lon, err := parseLatLon(c.Payload["loc"])
					if err != nil {
						return engine.View{Text: "Не вдалося прочитати локацію.", Keyboard: homeOnly()}
					}
					stops, err := d.City.StopsNearPoint(c.Context, lat, lon)
					if err != nil {
						d.Log.Warn("Nearby stops lookup failed", "error", err)
						return engine.View{
							Text:     "Сервіс зупинок тимчасово недоступний. Спробуйте пізніше.",
							Keyboard: homeOnly(),
						}
					}
					if len(stops) == 0 {
						return engine.View{
							Text:     "Поруч не знайдено зупинок електротранспорту.",
							Keyboard: homeOnly(),
						}
					}
					if len(stops) > 5 {
						stops = stops[:5]
					}
					var kb bot.Keyboard
					for _, s := range stops {
						label := fmt.Sprintf("%s (%.0f м)", s.Name, s.Distance)
						kb = append(kb, bot.Row(label, "arrstop:"+strconv.Itoa(s.ID)))
					}
					return engine.View{Text: "Оберіть зупинку:", Keyboard: withHome(kb)}
				},
				Validate: func(input string) (string, error) {
					return strings.TrimPrefix(input, "arrstop:"), nil
				},
			},
		},
		OnComplete: func(c *engine.Ctx) engine.View {
			stopID, err := strconv.Atoi(c.Payload["stop"])
			if err != nil {
				return engine.View{Text: "Невідома зупинка.", Keyboard: homeOnly()}
			}
			info, err := d.City.StopArrivals(c.Context, stopID)
			if err != nil {
				d.Log.Warn("Arrivals lookup failed", "stop_id", stopID, "error", err)
				return engine.View{
					Text:     "Не вдалося отримати прогноз прибуття. Спробуйте пізніше.",
					Keyboard: homeOnly(),
				}
			}

			// Cross-reference the GTFS side: the stop nearest to the
			// user's location anchors the progress classification.
			var refStopID string
			if lat, lon, err := parseLatLon(c.Payload["loc"]); err == nil {
				if stop, ok := d.Matcher.NearestStop(lat, lon); ok {
					refStopID = stop.StopID
				}
			}
			return engine.View{Text: d.formatArrivals(info, refStopID), Keyboard: homeOnly()}
		},
	}
}

func (d Deps) formatArrivals(info *cityapi.StopInfo, refStopID string) string {
	if len(info.Arrivals) == 0 {
		return fmt.Sprintf("🚏 %s\n\nНайближчим часом прибуття не очікується.", info.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🚏 %s\n", info.Name)
	for _, a := range info.Arrivals {
		eta := time.Duration(a.ArrivalTime) * time.Second
		minutes := int(eta.Round(time.Minute) / time.Minute)
		fmt.Fprintf(&b, "\n• Маршрут %s", a.RouteName)
		if minutes <= 0 {
			b.WriteString(" — прибуває")
		} else {
			fmt.Fprintf(&b, " — через %d хв", minutes)
		}
		if a.Handicapped {
			b.WriteString(" ♿")
		}
		if refStopID != "" && d.accessibleApproaching(refStopID, a.RouteName, a.Direction) {
			b.WriteString(" (низькопідлоговий наближається)")
		}
	}
	return b.String()
}

// accessibleApproaching reports whether any accessible vehicle on the
// line has not yet passed the reference stop.
func (d Deps) accessibleApproaching(refStopID, routeName string, rtDirection int) bool {
	snap := d.Static.Snapshot()
	if snap == nil {
		return false
	}
	for _, routeID := range snap.RouteIDsByShortName(routeName) {
		for _, v := range d.Realtime.AccessibleOnRoute(routeID) {
			switch d.Matcher.Classify(refStopID, v.Latitude, v.Longitude, routeName, rtDirection) {
			case stopmatch.ProgressApproaching, stopmatch.ProgressArriving:
				return true
			}
		}
	}
	return false
}
