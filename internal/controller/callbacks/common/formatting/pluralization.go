package formatting

// pluralize выбирает форму слова для числа n: one (1, 21), few (2-4, 22-24), many (остальные)
func pluralize(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	switch {
	case n%10 == 1 && n%100 != 11:
		return one
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 10 || n%100 >= 20):
		return few
	default:
		return many
	}
}

// PluralizeSessions возвращает правильное склонение слова "сессия"
func PluralizeSessions(count int) string {
	return pluralize(count, "сессия", "сессии", "сессий")
}

// PluralizeSlots возвращает правильное склонение слова "слот"
func PluralizeSlots(count int) string {
	return pluralize(count, "слот", "слота", "слотов")
}

// PluralizeWeeks возвращает правильное склонение слова "неделя" в винительном падеже
func PluralizeWeeks(count int) string {
	return pluralize(count, "неделю", "недели", "недель")
}

// PluralizeConflicts возвращает правильное склонение слова "конфликт"
func PluralizeConflicts(count int) string {
	return pluralize(count, "конфликт", "конфликта", "конфликтов")
}
