package i18n

// Message keys used across the dialogue engine. Every user-facing string
// lives here; raw error text never reaches a reply.
const (
	KeyAskName          = "ask_name"
	KeyAskContact       = "ask_contact"
	KeyAskDatetime      = "ask_datetime"
	KeyAskLocation      = "ask_location"
	KeyAskNotes         = "ask_notes"
	KeyAskSubject       = "ask_subject"
	KeyAskMessage       = "ask_message"
	KeyAskConsent       = "ask_consent"
	KeyEscalationOffer  = "escalation_offer"
	KeyHandoffAck       = "handoff_ack"
	KeyBookingConfirmed = "booking_confirmed"
	KeyBookingNearby    = "booking_nearby"
	KeyBookingNone      = "booking_none"
	KeyBookingFailed    = "booking_failed"
	KeyTicketCreated    = "ticket_created"
	KeyTicketFailed     = "ticket_failed"
	KeyConsentDeclined  = "consent_declined"
	KeyToolFailure      = "tool_failure"
	KeyPriceLine        = "price_line"
	KeyDisclaimer       = "disclaimer"
	KeyChartDirective   = "chart_directive"
	KeyCoursesHeader    = "courses_header"
	KeyCoursesAllOwned  = "courses_all_owned"
	KeyLangSwitched     = "lang_switched"
	KeyProfileCopied    = "profile_copied"
	KeyProfileMissing   = "profile_missing"
	KeyAnalytics        = "analytics_summary"
	KeyAnalyticsDenied  = "analytics_denied"
	KeyChitchatFallback = "chitchat_fallback"
	KeySuggestHuman     = "suggest_human"
	KeySuggestRetry     = "suggest_retry"
)

var catalogs = map[string]map[string]string{
	LangEn: {
		KeyAskName:          "What is your full name?",
		KeyAskContact:       "How can we reach you? Please share a phone number or email.",
		KeyAskDatetime:      "When would you like your appointment? For example: 2025-10-22 16:30, or \"tomorrow at 4pm\".",
		KeyAskLocation:      "Which branch suits you: Riyadh, Jeddah, or Online?",
		KeyAskNotes:         "Any notes for the advisor? Reply with your notes or \"none\".",
		KeyAskSubject:       "What is the subject of your request?",
		KeyAskMessage:       "Please describe the issue in a few sentences.",
		KeyAskConsent:       "Do you agree that our team contacts you about this request? (yes/no)",
		KeyEscalationOffer:  "It seems we're going in circles. Would you like me to connect you with a human colleague?",
		KeyHandoffAck:       "Done - a colleague will take over this conversation shortly.",
		KeyBookingConfirmed: "Your appointment is booked for %s. Reference: %s.",
		KeyBookingNearby:    "That exact time is taken. Nearest available slots: %s. Which one works for you?",
		KeyBookingNone:      "No slots are available on that day. Please suggest another date.",
		KeyBookingFailed:    "We couldn't complete the booking right now. Your details are saved - please try again.",
		KeyTicketCreated:    "Your ticket has been created. Reference: %s. Our team will follow up.",
		KeyTicketFailed:     "We couldn't submit your ticket right now. Your details are saved - please try again.",
		KeyConsentDeclined:  "Understood, we won't proceed without your consent. You can restart anytime.",
		KeyToolFailure:      "We couldn't fetch some data right now. Please try again in a moment.",
		KeyPriceLine:        "According to %s, %s is %s.",
		KeyDisclaimer:       "This is educational content, not investment advice.",
		KeyChartDirective:   "[chart:%s]",
		KeyCoursesHeader:    "Available courses:",
		KeyCoursesAllOwned:  "You already own every course we offer - well done!",
		KeyLangSwitched:     "Language switched.",
		KeyProfileCopied:    "Done, using your saved %s.",
		KeyProfileMissing:   "We don't have a saved %s for you yet.",
		KeyAnalytics:        "Active sessions: %d. Messages stored: %d.",
		KeyAnalyticsDenied:  "Analytics are available to staff accounts only.",
		KeyChitchatFallback: "I'm here to help with trading education, appointments, and support. How can I help?",
		KeySuggestHuman:     "Talk to a human",
		KeySuggestRetry:     "Try again",
	},
	LangAr: {
		KeyAskName:          "ما اسمك الكامل؟",
		KeyAskContact:       "كيف نتواصل معك؟ فضلاً شارك رقم جوال أو بريد إلكتروني.",
		KeyAskDatetime:      "متى تفضل موعدك؟ مثال: 2025-10-22 16:30 أو \"غداً الساعة 4\".",
		KeyAskLocation:      "أي فرع يناسبك: الرياض، جدة، أم أونلاين؟",
		KeyAskNotes:         "هل لديك ملاحظات للمستشار؟ اكتبها أو أرسل \"لا\".",
		KeyAskSubject:       "ما موضوع طلبك؟",
		KeyAskMessage:       "فضلاً اشرح المشكلة في جمل قليلة.",
		KeyAskConsent:       "هل توافق على تواصل فريقنا معك بخصوص هذا الطلب؟ (نعم/لا)",
		KeyEscalationOffer:  "يبدو أننا ندور في حلقة. هل تود أن أوصلك بزميل بشري؟",
		KeyHandoffAck:       "تم - سيتابع معك أحد الزملاء خلال لحظات.",
		KeyBookingConfirmed: "تم حجز موعدك في %s. الرقم المرجعي: %s.",
		KeyBookingNearby:    "هذا الوقت محجوز. أقرب المواعيد المتاحة: %s. أيها يناسبك؟",
		KeyBookingNone:      "لا توجد مواعيد متاحة في ذلك اليوم. فضلاً اقترح تاريخاً آخر.",
		KeyBookingFailed:    "تعذر إتمام الحجز حالياً. بياناتك محفوظة - حاول مرة أخرى.",
		KeyTicketCreated:    "تم إنشاء تذكرتك. الرقم المرجعي: %s. سيتابع فريقنا معك.",
		KeyTicketFailed:     "تعذر إرسال تذكرتك حالياً. بياناتك محفوظة - حاول مرة أخرى.",
		KeyConsentDeclined:  "مفهوم، لن نكمل بدون موافقتك. يمكنك البدء من جديد في أي وقت.",
		KeyToolFailure:      "تعذر جلب بعض البيانات حالياً. فضلاً حاول بعد قليل.",
		KeyPriceLine:        "حسب %s، سعر %s هو %s.",
		KeyDisclaimer:       "هذا محتوى تعليمي وليس نصيحة استثمارية.",
		KeyChartDirective:   "[chart:%s]",
		KeyCoursesHeader:    "الدورات المتاحة:",
		KeyCoursesAllOwned:  "لديك كل الدورات المتاحة بالفعل - أحسنت!",
		KeyLangSwitched:     "تم تغيير اللغة.",
		KeyProfileCopied:    "تم، سنستخدم %s المحفوظ لديك.",
		KeyProfileMissing:   "لا يوجد %s محفوظ لديك بعد.",
		KeyAnalytics:        "الجلسات النشطة: %d. الرسائل المخزنة: %d.",
		KeyAnalyticsDenied:  "التقارير متاحة لحسابات الموظفين فقط.",
		KeyChitchatFallback: "أنا هنا لمساعدتك في التعليم التداولي والمواعيد والدعم. كيف أساعدك؟",
		KeySuggestHuman:     "تحدث مع موظف",
		KeySuggestRetry:     "حاول مجدداً",
	},
	LangFr: {
		KeyAskName:          "Quel est votre nom complet ?",
		KeyAskContact:       "Comment pouvons-nous vous joindre ? Partagez un numéro de téléphone ou un e-mail.",
		KeyAskDatetime:      "Quand souhaitez-vous votre rendez-vous ? Par exemple : 2025-10-22 16:30, ou \"demain à 16h\".",
		KeyAskLocation:      "Quelle agence vous convient : Riyad, Djeddah ou en ligne ?",
		KeyAskNotes:         "Des remarques pour le conseiller ? Répondez avec vos notes ou \"aucune\".",
		KeyAskSubject:       "Quel est le sujet de votre demande ?",
		KeyAskMessage:       "Décrivez le problème en quelques phrases.",
		KeyAskConsent:       "Acceptez-vous que notre équipe vous contacte à ce sujet ? (oui/non)",
		KeyEscalationOffer:  "Nous tournons en rond. Voulez-vous que je vous mette en relation avec un collègue ?",
		KeyHandoffAck:       "C'est fait - un collègue prendra le relais sous peu.",
		KeyBookingConfirmed: "Votre rendez-vous est confirmé pour %s. Référence : %s.",
		KeyBookingNearby:    "Ce créneau exact est pris. Créneaux les plus proches : %s. Lequel vous convient ?",
		KeyBookingNone:      "Aucun créneau disponible ce jour-là. Proposez une autre date.",
		KeyBookingFailed:    "Impossible de finaliser la réservation. Vos informations sont conservées - réessayez.",
		KeyTicketCreated:    "Votre ticket a été créé. Référence : %s. Notre équipe vous recontactera.",
		KeyTicketFailed:     "Impossible d'envoyer votre ticket. Vos informations sont conservées - réessayez.",
		KeyConsentDeclined:  "Compris, nous ne continuerons pas sans votre accord.",
		KeyToolFailure:      "Impossible de récupérer certaines données. Réessayez dans un instant.",
		KeyPriceLine:        "Selon %s, %s vaut %s.",
		KeyDisclaimer:       "Contenu éducatif, pas un conseil en investissement.",
		KeyChartDirective:   "[chart:%s]",
		KeyCoursesHeader:    "Cours disponibles :",
		KeyCoursesAllOwned:  "Vous possédez déjà tous nos cours - bravo !",
		KeyLangSwitched:     "Langue modifiée.",
		KeyProfileCopied:    "C'est fait, nous utilisons votre %s enregistré.",
		KeyProfileMissing:   "Nous n'avons pas encore de %s enregistré pour vous.",
		KeyAnalytics:        "Sessions actives : %d. Messages stockés : %d.",
		KeyAnalyticsDenied:  "Les statistiques sont réservées au personnel.",
		KeyChitchatFallback: "Je suis là pour la formation au trading, les rendez-vous et le support. Comment puis-je aider ?",
		KeySuggestHuman:     "Parler à un humain",
		KeySuggestRetry:     "Réessayer",
	},
}
