package offlinepages

// Condition is one critical-condition reference card of the medical guide.
// Step texts may contain {emergency}, which is replaced by the emergency number.
type Condition struct {
	ID       string
	Title    string
	Severity string
	Signs    []string
	Steps    []string
	Warning  string
}

// Conditions is the critical-condition reference content, most time-critical first.
var Conditions = []Condition{
	{
		ID:       "cardiac-arrest",
		Title:    "Cardiac Arrest (not breathing normally)",
		Severity: "Life-threatening",
		Signs:    []string{"Unresponsive", "Not breathing, or only gasping", "No signs of life"},
		Steps: []string{
			"Check for danger, then tap the shoulders and shout to check for a response.",
			"Call {emergency} right away and put the phone on speaker. Send someone for an AED.",
			"Place the heel of your hand in the centre of the chest, other hand on top.",
			"Push hard and fast: 5-6 cm deep, 100-120 compressions per minute.",
			"If trained, give 2 rescue breaths after every 30 compressions. Otherwise keep compressing.",
			"Switch on the AED as soon as it arrives and follow its voice prompts.",
			"Do not stop until help takes over or the person starts breathing normally.",
		},
		Warning: "Compression-only CPR is far better than doing nothing.",
	},
	{
		ID:       "choking",
		Title:    "Choking (adult or child over 1 year)",
		Severity: "Life-threatening",
		Signs:    []string{"Cannot speak, cough or breathe", "Clutching the throat", "Lips turning blue"},
		Steps: []string{
			"Ask \"Are you choking?\" If they can cough, encourage them to keep coughing.",
			"Lean them forward and give up to 5 firm back blows between the shoulder blades.",
			"Give up to 5 abdominal thrusts: fist above the navel, pull sharply inwards and upwards.",
			"Keep alternating 5 back blows and 5 abdominal thrusts.",
			"If they become unresponsive, call {emergency} and start CPR.",
		},
		Warning: "Anyone who received abdominal thrusts must be checked by a doctor.",
	},
	{
		ID:       "severe-bleeding",
		Title:    "Severe Bleeding",
		Severity: "Life-threatening",
		Signs:    []string{"Blood spurting or pooling", "Blood soaking through clothing", "Pale, cold, clammy skin"},
		Steps: []string{
			"Call {emergency}.",
			"Press firmly on the wound with a clean cloth or dressing, or your hand.",
			"Keep pressing. If blood soaks through, add more cloth on top; do not remove the first layer.",
			"If a limb is bleeding uncontrollably and you are trained, apply a tourniquet above the wound.",
			"Lay the person down, keep them warm and watch their breathing until help arrives.",
		},
		Warning: "Do not remove objects stuck in a wound; press around them.",
	},
	{
		ID:       "heart-attack",
		Title:    "Heart Attack",
		Severity: "Life-threatening",
		Signs:    []string{"Chest pain or pressure spreading to arm, jaw or back", "Shortness of breath", "Sweating, nausea, light-headedness"},
		Steps: []string{
			"Call {emergency} immediately.",
			"Help them sit down and rest in a comfortable position, loosen tight clothing.",
			"If they are not allergic, give one adult aspirin (300 mg) to chew slowly.",
			"If they have prescribed angina medication, help them take it.",
			"Stay with them. If they become unresponsive and stop breathing, start CPR.",
		},
	},
	{
		ID:       "stroke",
		Title:    "Stroke",
		Severity: "Life-threatening",
		Signs:    []string{"Face drooping on one side", "Arm weakness", "Slurred or strange speech"},
		Steps: []string{
			"Use FAST: Face, Arms, Speech, Time.",
			"Call {emergency} at once if any sign is present.",
			"Note the time the symptoms started and tell the responders.",
			"Do not give food, drink or medication.",
			"If they become unresponsive but are breathing, place them in the recovery position.",
		},
		Warning: "Every minute counts: do not wait to see if symptoms pass.",
	},
	{
		ID:       "anaphylaxis",
		Title:    "Severe Allergic Reaction (Anaphylaxis)",
		Severity: "Life-threatening",
		Signs:    []string{"Swelling of face, lips or throat", "Difficulty breathing or wheezing", "Widespread rash, collapse"},
		Steps: []string{
			"Use their adrenaline auto-injector into the outer thigh, through clothing if needed.",
			"Call {emergency} and say \"anaphylaxis\".",
			"Lie them down with legs raised, or let them sit up if breathing is difficult.",
			"If there is no improvement after 5 minutes, give a second auto-injector if available.",
			"If they stop breathing normally, start CPR.",
		},
	},
	{
		ID:       "burns",
		Title:    "Serious Burns",
		Severity: "Urgent",
		Signs:    []string{"Large, deep or charred burn", "Burns to face, hands, feet or genitals", "Electrical or chemical burn"},
		Steps: []string{
			"Stop the burning: remove the person from the source of heat.",
			"Cool the burn under cool running water for at least 20 minutes.",
			"Remove jewellery and clothing near the burn unless stuck to the skin.",
			"Cover loosely with cling film or a clean non-fluffy dressing.",
			"Call {emergency} for large, deep, electrical or chemical burns.",
		},
		Warning: "Never use ice, butter or creams on a burn.",
	},
	{
		ID:       "seizure",
		Title:    "Seizure",
		Severity: "Urgent",
		Signs:    []string{"Sudden collapse", "Rigid body and jerking movements", "Loss of awareness"},
		Steps: []string{
			"Protect them from injury: move hard objects away and cushion the head.",
			"Do not hold them down and do not put anything in their mouth.",
			"Time the seizure.",
			"Call {emergency} if it lasts more than 5 minutes, repeats, or they are injured.",
			"When the jerking stops, place them in the recovery position and stay with them.",
		},
	},
}
