package usecase

import "strings"

// Template is a preset site idea submitted with a fixed description.
type Template struct {
	Name        string
	Icon        string
	Description string
}

var templates = []Template{
	{
		Name:        "Лендинг",
		Icon:        "FileText",
		Description: "Одностраничный лендинг с ярким первым экраном, блоком преимуществ, отзывами клиентов и формой заявки.",
	},
	{
		Name:        "Интернет-магазин",
		Icon:        "ShoppingCart",
		Description: "Интернет-магазин с каталогом товаров, карточками с фото и ценами, корзиной и оформлением заказа.",
	},
	{
		Name:        "Блог",
		Icon:        "BookOpen",
		Description: "Блог с лентой статей, страницей записи, рубриками, поиском и подпиской на новые публикации.",
	},
	{
		Name:        "Портфолио",
		Icon:        "Briefcase",
		Description: "Портфолио с галереей работ, описанием проектов, разделом обо мне и контактами.",
	},
	{
		Name:        "Визитка",
		Icon:        "CreditCard",
		Description: "Сайт-визитка с кратким рассказом о компании, списком услуг, адресом на карте и контактами.",
	},
	{
		Name:        "Квиз",
		Icon:        "HelpCircle",
		Description: "Квиз-сайт с пошаговыми вопросами, расчётом результата и формой для получения контактов.",
	},
}

// Templates returns the templates in display order.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// LookupTemplate finds a template by exact name, ignoring surrounding space.
func LookupTemplate(name string) (Template, bool) {
	name = strings.TrimSpace(name)
	for _, t := range templates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}
