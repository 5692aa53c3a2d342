package address

var (
	units = [...]string{"", "UM", "DOIS", "TRES", "QUATRO", "CINCO", "SEIS", "SETE", "OITO", "NOVE"}
	teens = [...]string{"DEZ", "ONZE", "DOZE", "TREZE", "QUATORZE", "QUINZE", "DEZESSEIS", "DEZESSETE", "DEZOITO", "DEZENOVE"}
	tens  = [...]string{"", "", "VINTE", "TRINTA", "QUARENTA", "CINQUENTA", "SESSENTA", "SETENTA", "OITENTA", "NOVENTA"}
)

// Cardinal spells n (1..99) as an unaccented, upper-case Portuguese cardinal.
// It returns "" outside that range.
func Cardinal(n int) string {
	switch {
	case n < 1 || n > 99:
		return ""
	case n < 10:
		return units[n]
	case n < 20:
		return teens[n-10]
	case n%10 == 0:
		return tens[n/10]
	default:
		return tens[n/10] + " E " + units[n%10]
	}
}
