package dialogs

import (
	"github.com/ogettransport/oget-bot/internal/bot"
	"github.com/ogettransport/oget-bot/internal/bot/engine"
	"github.com/ogettransport/oget-bot/internal/tickets"
)

// registerFeedback wires the complaint, thanks and suggestion scripts
// plus the feedback submenu.
func (d Deps) registerFeedback(e *engine.Engine) {
	e.HandleCallback("fb:", func(c *engine.Ctx, data string) {
		switch data {
		case "fb:menu":
			c.Show(engine.View{
				Text: "Оберіть тип звернення:",
				Keyboard: withHome(bot.Keyboard{
					bot.Row("Скарга", "fb:complaint"),
					bot.Row("Подяка", "fb:thanks"),
					bot.Row("Пропозиція", "fb:suggestion"),
				}),
			})
		case "fb:complaint":
			c.Start("complaint")
		case "fb:thanks":
			c.Start("thanks")
		case "fb:suggestion":
			c.Start("suggestion")
		}
	})

	e.Register(d.complaintScript())
	e.Register(d.thanksScript())
	e.Register(d.suggestionScript())
}

func (d Deps) routeValidator() func(string) (string, error) {
	return validRoute(func() routeChecker {
		snap := d.Static.Snapshot()
		if snap == nil {
			return nil
		}
		return snap
	})
}

func (d Deps) complaintScript() *engine.Script {
	return &engine.Script{
		Name:  "complaint",
		Entry: "text",
		Steps: []*engine.Step{
			{
				ID:     "text",
				Expect: engine.ExpectText,
				Key:    "text",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Опишіть проблему одним повідомленням:",
						Keyboard: homeOnly(),
					}
				},
				Validate: validNonEmpty("Повідомлення не може бути порожнім."),
				Next:     gotoStep("route"),
			},
			{
				ID:     "route",
				Expect: engine.ExpectText,
				Key:    "route",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Вкажіть номер маршруту:",
						Keyboard: homeOnly(),
					}
				},
				Validate: d.routeValidator(),
				Next:     gotoStep("board"),
			},
			{
				ID:     "board",
				Expect: engine.ExpectText,
				Key:    "board",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Вкажіть бортовий номер транспортного засобу:",
						Keyboard: homeOnly(),
					}
				},
				Validate: validNonEmpty("Вкажіть бортовий номер."),
				Next:     gotoStep("when"),
			},
			{
				ID:     "when",
				Expect: engine.ExpectText,
				Key:    "when",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Коли це сталося? (ДД.ММ.РРРР ГГ:ХХ)",
						Keyboard: homeOnly(),
					}
				},
				Validate: validDateTime,
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
		OnComplete: func(c *engine.Ctx) engine.View {
			name, phone := splitContact(c.Payload["contact"])
			res := d.Tickets.CreateComplaint(c.Context, c.UserID, tickets.Payload{
				Text:      c.Payload["text"],
				Route:     c.Payload["route"],
				Board:     c.Payload["board"],
				EventTime: c.Payload["when"],
				Name:      name,
				Phone:     phone,
			})
			return engine.View{Text: res.Message, Keyboard: homeOnly()}
		},
	}
}

func (d Deps) thanksScript() *engine.Script {
	return &engine.Script{
		Name:  "thanks",
		Entry: "kind",
		Steps: []*engine.Step{
			{
				ID:     "kind",
				Expect: engine.ExpectCallback,
				Key:    "kind",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text: "Кому ви хочете подякувати?",
						Keyboard: withHome(bot.Keyboard{
							bot.Row("Екіпажу трамвая", "tram"),
							bot.Row("Екіпажу тролейбуса", "trolley"),
							bot.Row("Підприємству загалом", "general"),
						}),
					}
				},
				Next: func(c *engine.Ctx, input string) string {
					if input == "general" {
						return "text"
					}
					return "board"
				},
			},
			{
				ID:     "board",
				Expect: engine.ExpectText,
				Key:    "board",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Вкажіть бортовий номер транспортного засобу:",
						Keyboard: homeOnly(),
					}
				},
				Validate: validNonEmpty("Вкажіть бортовий номер."),
				Next:     gotoStep("text"),
			},
			{
				ID:     "text",
				Expect: engine.ExpectText,
				Key:    "text",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Напишіть текст подяки. Якщо знаєте ім'я водія чи кондуктора, додайте його:",
						Keyboard: homeOnly(),
					}
				},
				Validate: validNonEmpty("Повідомлення не може бути порожнім."),
				Next:     gotoStep("name"),
			},
			{
				ID:     "name",
				Expect: engine.ExpectText,
				Key:    "name",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Як вас звати?",
						Keyboard: homeOnly(),
					}
				},
				Validate: validNonEmpty("Вкажіть ім'я."),
				Next:     gotoStep("email"),
			},
			{
				ID:     "email",
				Expect: engine.ExpectText,
				Key:    "email",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Залиште email для відповіді або надішліть «-», щоб пропустити:",
						Keyboard: homeOnly(),
					}
				},
				Validate: validEmail,
			},
		},
		OnComplete: func(c *engine.Ctx) engine.View {
			res := d.Tickets.CreateThanks(c.Context, c.UserID, tickets.Payload{
				Text:  c.Payload["text"],
				Board: c.Payload["board"],
				Name:  c.Payload["name"],
				Email: c.Payload["email"],
			})
			return engine.View{Text: res.Message, Keyboard: homeOnly()}
		},
	}
}

func (d Deps) suggestionScript() *engine.Script {
	return &engine.Script{
		Name:  "suggestion",
		Entry: "text",
		Steps: []*engine.Step{
			{
				ID:     "text",
				Expect: engine.ExpectText,
				Key:    "text",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Опишіть вашу пропозицію:",
						Keyboard: homeOnly(),
					}
				},
				Validate: validNonEmpty("Повідомлення не може бути порожнім."),
				Next:     gotoStep("name"),
			},
			{
				ID:     "name",
				Expect: engine.ExpectText,
				Key:    "name",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{Text: "Як вас звати?", Keyboard: homeOnly()}
				},
				Validate: validNonEmpty("Вкажіть ім'я."),
				Next:     gotoStep("phone"),
			},
			{
				ID:     "phone",
				Expect: engine.ExpectText,
				Key:    "phone",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{Text: "Вкажіть номер телефону:", Keyboard: homeOnly()}
				},
				Validate: validPhone,
				Next:     gotoStep("email"),
			},
			{
				ID:     "email",
				Expect: engine.ExpectText,
				Key:    "email",
				Render: func(c *engine.Ctx) engine.View {
					return engine.View{
						Text:     "Залиште email або надішліть «-», щоб пропустити:",
						Keyboard: homeOnly(),
					}
				},
				Validate: validEmail,
			},
		},
		OnComplete: func(c *engine.Ctx) engine.View {
			res := d.Tickets.CreateSuggestion(c.Context, c.UserID, tickets.Payload{
				Text:  c.Payload["text"],
				Name:  c.Payload["name"],
				Phone: c.Payload["phone"],
				Email: c.Payload["email"],
			})
			return engine.View{Text: res.Message, Keyboard: homeOnly()}
		},
	}
}

// gotoStep is the fixed-successor selector.
func gotoStep(id string) func(*engine.Ctx, string) string {
	return func(*engine.Ctx, string) string { return id }
}
