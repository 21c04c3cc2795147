package share

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"GoldPledge/internal/calc/loan"
)

// Money formats an amount as rupees with two decimals and Indian digit
// grouping, e.g. 1234567.5 -> "₹12,34,567.50".
func Money(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	return sign + "₹" + groupIndian(whole) + "." + frac
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	parts = append([]string{head}, parts...)
	return strings.Join(parts, ",") + "," + tail
}

func Grams(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + " grams"
}

func Percent(v float64) string {
	return decimal.NewFromFloat(v).String() + "%"
}

// Summary is the plain-text form of a quote used for messages and mail.
func Summary(q loan.Quote) string {
	var b strings.Builder
	b.WriteString("Gold Loan Calculation:\n\n")
	fmt.Fprintf(&b, "Gold Purity: %s\n", q.Purity.Label())
	fmt.Fprintf(&b, "Interest Rate: %s\n", Percent(q.InterestRate))
	fmt.Fprintf(&b, "Rate Per Gram: %s per gram\n", Money(q.RatePerGram()))
	if q.GoldWeight != nil {
		fmt.Fprintf(&b, "Required Gold Weight: %s\n", Grams(*q.GoldWeight))
	}
	if q.LoanAmount != nil {
		fmt.Fprintf(&b, "Loan Amount: %s\n", Money(*q.LoanAmount))
	}
	fmt.Fprintf(&b, "Principal Amount: %s\n", Money(q.PrincipalAmount))
	fmt.Fprintf(&b, "Interest Amount: %s\n", Money(q.InterestAmount))
	fmt.Fprintf(&b, "Eligible Loan Amount: %s", Money(q.EligibleAmount))
	return b.String()
}

// WhatsAppLink builds a wa.me link. Spaces and a leading + are dropped from
// the phone number; an empty number opens the contact picker.
func WhatsAppLink(phone, text string) string {
	phone = strings.Join(strings.Fields(phone), "")
	phone = strings.TrimPrefix(phone, "+")
	return "https://wa.me/" + phone + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}
