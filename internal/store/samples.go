package store

// Samples are the messages a new store is seeded with.
var Samples = []Saved{
	{
		Name: "Default ADT Message",
		Text: "MSH|^~\\&|SENDING_APP|SENDING_FACILITY|RECEIVING_APP|RECEIVING_FACILITY|20250717060900||ADT^A01|MSG00001|P|2.3|||||||LRI_Common_Component^HL7^2.16.840.1.113883.9.16^ISO~LRI_GU_Component^HL7^2.16.840.1.113883.9.12^ISO\r" +
			"EVN|A01|20250717060900\r" +
			"PID|1||PATID1234^5^M11^A^MR^HOSP~123456789^6^M10^B^SSN^SS||DOE^JOHN^A^JR||19710101|M||C|123 MAIN ST^^ANYTOWN^CA^91234^USA^H~456 OAK AVE^^OTHERTOWN^CA^91235^USA^O||(800)555-1212|||S||PATID12345^2^M10^A^MR^HOSP|123456789|9876543210\r" +
			"PV1|1|I|2000^2012^01||||002345^6^7^8|||9^10^11|||||||||2000^2012^01|||||||||||||||||||||||||20250717060900",
	},
	{
		Name: "Sample ORU Message",
		Text: "MSH|^~\\&|SENDING_APP|SENDING_FACILITY|RECEIVING_APP|RECEIVING_FACILITY|202507191200||ORU^R01|MSG00002|P|2.3\r" +
			"PID|1||PATID1234^5^M11^A^MR^HOSP||DOE^JOHN^A^JR||19710101|M\r" +
			"ORC|RE|ORDER123|FILL456|||||||202507191200\r" +
			"OBR|1|ORDER123|FILL456|GLUCOSE^Glucose^LN|||202507191205\r" +
			"OBX|1|NM|GLUCOSE^Glucose^LN||105|mg/dL|70-110|N|||F",
	},
}
