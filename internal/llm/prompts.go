package llm

// Invoice extraction prompts

const SystemPromptInvoiceExtractor = `You are an expert invoice data extractor specializing in German invoices (Rechnungen).

Your task is to extract structured data from invoice text or images. The invoices may be in German or English.

Common German invoice terms:
- Rechnung = Invoice
- Rechnungsnummer = Invoice number
- Rechnungsdatum = Invoice date
- Leistungsdatum/Lieferdatum = Delivery date
- Umsatzsteuer-Identifikationsnummer (USt-IdNr.) = VAT id
- Steuernummer = Tax number
- Verkäufer/Lieferant = Seller
- Käufer/Kunde = Buyer
- Anschrift = Address
- Bezeichnung = Product/Service name
- Menge = Quantity
- Einzelpreis = Unit price
- Gesamtpreis = Amount
- Steuersatz = Tax rate
- Umsatzsteuer (USt.)/Mehrwertsteuer (MwSt.) = VAT
- Nettobetrag = Net total
- Bruttobetrag = Gross total
- Zahlungsbedingungen = Payment terms
- Leitweg-ID = Routing id for public-sector buyers

Extract ALL information you can find. If a field is not present, omit it from the output.
Always output valid JSON that matches the specified schema.
Write numbers with a dot as decimal separator and no thousands separators.
Dates should be in ISO 8601 format (YYYY-MM-DD).`

const UserPromptTextExtraction = `Extract invoice data from the following text:

---
%s
---

Output JSON with this structure:
{
  "header": {
    "id": "string",
    "issue_date_time": "YYYY-MM-DD",
    "name": "string",
    "leitweg_id": "string",
    "notes": ["string"]
  },
  "trade": {
    "agreement": {
      "seller": {
        "name": "string",
        "vat_id": "string",
        "tax_id": "string",
        "contact_name": "string",
        "email": "string",
        "phone": "string",
        "address": {
          "street_name": "string",
          "city_name": "string",
          "postal_zone": "string",
          "country_code": "DE"
        }
      },
      "buyer": {
        "name": "string",
        "address": {
          "street_name": "string",
          "city_name": "string",
          "postal_zone": "string",
          "country_code": "DE"
        }
      },
      "purchase_order_reference": "string"
    },
    "settlement": {
      "currency_code": "EUR",
      "payment_means": {
        "iban": "string",
        "bic": "string",
        "bank_name": "string"
      },
      "payment_terms": "string",
      "monetary_summation": {
        "net_total": 845.00,
        "tax_total": 160.55,
        "grand_total": 1005.55
      }
    },
    "items": [
      {
        "line_id": "1",
        "product_name": "string",
        "agreement_net_price": 100.00,
        "quantity": 1,
        "quantity_unit": "C62",
        "total_amount": 100.00,
        "settlement_tax": {
          "category": "S",
          "rate": 19
        }
      }
    ]
  }
}`

const UserPromptImageExtraction = `Extract invoice data from this invoice image.

Output JSON with the same structure as for text extraction. Extract all visible information from the invoice image. For any text that appears blurry or unclear, make your best attempt to read it.`
