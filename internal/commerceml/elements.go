package commerceml

// Element names used by CommerceML 2.0x exchange documents.
const (
	tagRoot         = "КоммерческаяИнформация"
	tagCatalog      = "Каталог"
	tagProducts     = "Товары"
	tagProduct      = "Товар"
	tagOfferPackage = "ПакетПредложений"
	tagPriceTypes   = "ТипыЦен"
	tagStocks       = "Склады"
	tagOffers       = "Предложения"
	tagOffer        = "Предложение"
)

const requisiteBrandNumber = "АртикулПроизводителя"

const statusDeleted = "Удален"

type xmlProduct struct {
	ID          string         `xml:"Ид"`
	Article     string         `xml:"Артикул"`
	Name        string         `xml:"Наименование"`
	BaseUnit    xmlUnit        `xml:"БазоваяЕдиница"`
	Description string         `xml:"Описание"`
	Maker       xmlNamed       `xml:"Изготовитель"`
	Requisites  []xmlRequisite `xml:"ЗначенияРеквизитов>ЗначениеРеквизита"`
	Deleted     string         `xml:"ПометкаУдаления"`
	Status      string         `xml:"Статус"`
	StatusAttr  string         `xml:"Статус,attr"`
}

type xmlUnit struct {
	Text     string `xml:",chardata"`
	FullName string `xml:"НаименованиеПолное,attr"`
}

type xmlNamed struct {
	ID   string `xml:"Ид"`
	Name string `xml:"Наименование"`
}

type xmlRequisite struct {
	Name  string `xml:"Наименование"`
	Value string `xml:"Значение"`
}

type xmlPriceTypes struct {
	Items []xmlPriceType `xml:"ТипЦены"`
}

type xmlPriceType struct {
	ID       string `xml:"Ид"`
	Name     string `xml:"Наименование"`
	Currency string `xml:"Валюта"`
}

type xmlStocks struct {
	Items []xmlNamed `xml:"Склад"`
}

type xmlOffer struct {
	ID     string          `xml:"Ид"`
	Prices []xmlPrice      `xml:"Цены>Цена"`
	Stocks []xmlOfferStock `xml:"Склад"`
	Rests  []xmlRestStock  `xml:"Остатки>Остаток>Склад"`
}

type xmlPrice struct {
	PriceTypeID string `xml:"ИдТипаЦены"`
	PerUnit     string `xml:"ЦенаЗаЕдиницу"`
	Currency    string `xml:"Валюта"`
}

type xmlOfferStock struct {
	StockID  string `xml:"ИдСклада,attr"`
	Quantity string `xml:"КоличествоНаСкладе,attr"`
}

type xmlRestStock struct {
	ID       string `xml:"Ид"`
	Quantity string `xml:"Количество"`
}
